package ui

import (
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/desertthunder/dronewatch/internal/tasks"

	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
//
// gen is the mount generation of the view that issued the command. Results for a view that has since been left
// carry an older generation and are dropped.
type Msg struct {
	kind MsgKind
	gen  uint64
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTransition MsgKind = iota
	MsgTransitionsClosed
	MsgLoginDone
	MsgSignupDone
	MsgLogoutDone
	MsgRedirect
	MsgDetectionsLoaded
	MsgSettingsLoaded
	MsgFeedResolved
	MsgSettingsSaved
	MsgReportExported
	MsgFailure
)

type routeResult struct {
	route models.Route
	err   error
}

type signupResult struct {
	result session.SignupResult
	err    error
}

type settingsResult struct {
	settings models.Settings
	err      error
}

type exportResult struct {
	result *tasks.ReportResult
	err    error
}

// transitionMsg is the constructor for [MsgTransition]. Session transitions apply to every view.
func transitionMsg(t session.Transition) Msg {
	return Msg{kind: MsgTransition, data: t}
}

func transitionsClosedMsg() Msg {
	return Msg{kind: MsgTransitionsClosed}
}

// loginDoneMsg is the constructor for [MsgLoginDone]
func loginDoneMsg(gen uint64, route models.Route, err error) Msg {
	return Msg{kind: MsgLoginDone, gen: gen, data: routeResult{route, err}}
}

// signupDoneMsg is the constructor for [MsgSignupDone]
func signupDoneMsg(gen uint64, res session.SignupResult, err error) Msg {
	return Msg{kind: MsgSignupDone, gen: gen, data: signupResult{res, err}}
}

// logoutDoneMsg is the constructor for [MsgLogoutDone]
func logoutDoneMsg(route models.Route) Msg {
	return Msg{kind: MsgLogoutDone, data: routeResult{route: route}}
}

// redirectMsg is the constructor for [MsgRedirect], a delayed navigation.
func redirectMsg(gen uint64, route models.Route) Msg {
	return Msg{kind: MsgRedirect, gen: gen, data: route}
}

// detectionsLoadedMsg is the constructor for [MsgDetectionsLoaded]
func detectionsLoadedMsg(gen uint64, err error) Msg {
	return Msg{kind: MsgDetectionsLoaded, gen: gen, data: err}
}

// settingsLoadedMsg is the constructor for [MsgSettingsLoaded]
func settingsLoadedMsg(gen uint64, settings models.Settings, err error) Msg {
	return Msg{kind: MsgSettingsLoaded, gen: gen, data: settingsResult{settings, err}}
}

// feedResolvedMsg is the constructor for [MsgFeedResolved]
func feedResolvedMsg(gen uint64, url string) Msg {
	return Msg{kind: MsgFeedResolved, gen: gen, data: url}
}

// settingsSavedMsg is the constructor for [MsgSettingsSaved]
func settingsSavedMsg(gen uint64, address string, err error) Msg {
	return Msg{kind: MsgSettingsSaved, gen: gen, data: settingsResult{models.Settings{OBSServer: address}, err}}
}

// reportExportedMsg is the constructor for [MsgReportExported]
func reportExportedMsg(gen uint64, result *tasks.ReportResult, err error) Msg {
	return Msg{kind: MsgReportExported, gen: gen, data: exportResult{result, err}}
}

// failureMsg is the constructor for [MsgFailure]: a command panicked.
func failureMsg(err error) Msg {
	return Msg{kind: MsgFailure, data: err}
}
