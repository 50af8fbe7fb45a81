package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/desertthunder/dronewatch/internal/formatter"
	"github.com/desertthunder/dronewatch/internal/models"
)

const (
	navWidth      = 22
	minCellWidth  = 8
	maxCellWidth  = 28
	defaultHeight = 12
)

var _ list.Item = routeItem{}

// routeItem wraps [models.Route] to implement [list.Item].
type routeItem struct {
	route models.Route
}

func (i routeItem) FilterValue() string { return i.route.Title() }
func (i routeItem) Title() string       { return i.route.Title() }
func (i routeItem) Description() string { return i.route.String() }

// newNavList builds the side menu over [models.NavRoutes].
func newNavList() list.Model {
	items := make([]list.Item, len(models.NavRoutes))
	for i, r := range models.NavRoutes {
		items[i] = routeItem{route: r}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(items, delegate, navWidth, len(items)+2)
	l.Title = "AetherScan"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	return l
}

// navIndex is the position of route in the side menu, or -1.
func navIndex(route models.Route) int {
	for i, r := range models.NavRoutes {
		if r == route {
			return i
		}
	}
	return -1
}

// newDetectionTable lays out a report table as a focused [table.Model].
// Column widths follow the longest cell, clamped to a readable range.
func newDetectionTable(t formatter.Table, height int) table.Model {
	cols := make([]table.Column, len(t.Header))
	for i, name := range t.Header {
		w := max(len(name), minCellWidth)
		for _, row := range t.Rows {
			if i < len(row) {
				w = max(w, len(row[i]))
			}
		}
		cols[i] = table.Column{Title: name, Width: min(w, maxCellWidth)}
	}

	rows := make([]table.Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = table.Row(r)
	}

	if height <= 0 {
		height = defaultHeight
	}
	return table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
}
