// package formatter renders detection records as report tables (PDF, CSV, Markdown)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/go-pdf/fpdf"
)

const (
	DefaultTitle    = "Detections Report"
	DefaultFilename = "detections_report.pdf"

	// TimestampLayout is how Created At cells are rendered.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Report formats
const (
	FormatPDF      = "pdf"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// documentDate is stamped into every PDF so identical tables give identical bytes.
var documentDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Column describes one report column. A nil Selector renders an empty cell.
type Column struct {
	Name     string
	Selector func(models.DetectionRecord) string
	Sortable bool
}

// Table is a fully rendered report: every cell is already text.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

func textOf(key string) func(models.DetectionRecord) string {
	return func(r models.DetectionRecord) string {
		s, _ := r.Text(key)
		return s
	}
}

// DefaultColumns returns the six standard detection columns. Created At is rendered in loc.
func DefaultColumns(loc *time.Location) []Column {
	if loc == nil {
		loc = time.UTC
	}
	return []Column{
		{Name: "ID", Selector: textOf(models.KeyID), Sortable: true},
		{Name: "Object", Selector: textOf(models.KeyObjectDetected), Sortable: true},
		{Name: "Confidence", Selector: textOf(models.KeyConfidence), Sortable: true},
		{Name: "Latitude", Selector: textOf(models.KeyLatitude)},
		{Name: "Longitude", Selector: textOf(models.KeyLongitude)},
		{Name: "Created At", Selector: func(r models.DetectionRecord) string {
			if t, ok := r.Time(models.KeyCreatedAt); ok {
				return t.In(loc).Format(TimestampLayout)
			}
			s, _ := r.Text(models.KeyCreatedAt)
			return s
		}, Sortable: true},
	}
}

// BuildTable evaluates every column against every record, in order.
func BuildTable(title string, records []models.DetectionRecord, columns []Column) Table {
	if title == "" {
		title = DefaultTitle
	}

	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Name
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			if c.Selector != nil {
				row[i] = c.Selector(rec)
			}
		}
		rows = append(rows, row)
	}
	return Table{Title: title, Header: header, Rows: rows}
}

// WritePDF renders t as an A4 portrait document with the header row repeated on every page.
func WritePDF(w io.Writer, t Table) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(documentDate)
	pdf.SetModificationDate(documentDate)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(t.Title, true)
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()

	cols := len(t.Header)
	if cols == 0 {
		cols = 1
	}
	colW := (pageW - left - right) / float64(cols)
	const rowH = 7.0

	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() == 1 {
			pdf.SetFont("Helvetica", "B", 16)
			pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(41, 128, 185)
		pdf.SetTextColor(255, 255, 255)
		for _, h := range t.Header {
			pdf.CellFormat(colW, rowH, tr(h), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", 8)
	})

	pdf.AddPage()
	for i, row := range t.Rows {
		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 245)
		for _, cell := range row {
			pdf.CellFormat(colW, rowH, tr(fit(pdf, cell, colW)), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// fit truncates s with an ellipsis so it stays inside a cell of width w.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	const pad = 2.0
	if pdf.GetStringWidth(s) <= w-pad {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > w-pad {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}

// WriteCSV writes the header row followed by every table row.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// ToMarkdown renders t as a Markdown document with a pipe table.
func ToMarkdown(t Table) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("# %s\n\n", t.Title))
	buf.WriteString(fmt.Sprintf("**Detections**: %d\n\n", len(t.Rows)))

	if len(t.Header) == 0 {
		return buf.String()
	}

	buf.WriteString("| " + strings.Join(escapeCells(t.Header), " | ") + " |\n")
	buf.WriteString("|" + strings.Repeat(" --- |", len(t.Header)) + "\n")
	for _, row := range t.Rows {
		buf.WriteString("| " + strings.Join(escapeCells(row), " | ") + " |\n")
	}
	return buf.String()
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}

// Render writes t to w in the given format.
func Render(w io.Writer, format string, t Table) error {
	switch format {
	case FormatPDF:
		return WritePDF(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatMarkdown:
		_, err := io.WriteString(w, ToMarkdown(t))
		return err
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// ParseFormat resolves a format name or file extension.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "pdf":
		return FormatPDF, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// Filename returns the default report filename for format.
func Filename(format string) string {
	switch format {
	case FormatCSV:
		return "detections_report.csv"
	case FormatMarkdown:
		return "detections_report.md"
	default:
		return DefaultFilename
	}
}

// WriteReport renders t and writes it to path, creating parent directories.
// An empty path writes the default filename for format into the working directory.
func WriteReport(path, format string, t Table) (string, error) {
	if path == "" {
		path = Filename(format)
	}

	var buf bytes.Buffer
	if err := Render(&buf, format, t); err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
