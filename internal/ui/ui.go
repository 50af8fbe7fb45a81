package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/formatter"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/desertthunder/dronewatch/internal/tasks"
)

const (
	failureMessage     = "Something went wrong."
	msgSettingsSaved   = "Settings updated successfully!"
	msgInvalidAddress  = "Please enter a valid OBS server address."
	msgDetectionsError = "Failed to load detections."
	msgSettingsError   = "Failed to load settings."
)

// Deps are the collaborators the TUI drives.
type Deps struct {
	Store    *session.Store
	Gateway  *session.Gateway
	Settings *tasks.SettingsSync
	Backend  tasks.APIClient
	Recorder tasks.ExportRecorder
	Logger   *log.Logger

	DefaultFeed string
	ReportTitle string
	ReportDir   string
	Location    *time.Location
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	deps        Deps
	guard       *session.Guard
	transitions <-chan session.Transition

	start     models.Route
	route     models.Route
	suspended bool
	gen       uint64
	busy      bool

	width  int
	height int

	nav      list.Model
	email    textinput.Model
	password textinput.Model
	focus    int
	address  textinput.Model
	feed     *tasks.DetectionFeed
	table    table.Model
	feedURL  string

	errs    []string
	notices []string
	fatal   error

	help help.Model
	keys keyMap
}

// NewModel creates the TUI over an already started session store. start is the first route requested;
// the guard decides what is actually shown.
//
// Session transitions are observed until ctx ends.
func NewModel(ctx context.Context, deps Deps, start models.Route) *Model {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if start == "" {
		start = models.RouteRoot
	}

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	address := textinput.New()
	address.Placeholder = tasks.DefaultOBSServer
	address.CharLimit = 253

	guard := session.NewGuard(deps.Store)
	return &Model{
		ctx:         ctx,
		deps:        deps,
		guard:       guard,
		transitions: guard.Transitions(ctx),
		start:       start,
		nav:         newNavList(),
		email:       email,
		password:    password,
		address:     address,
		table:       newDetectionTable(formatter.Table{}, defaultHeight),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Route is the view currently mounted.
func (m *Model) Route() models.Route { return m.route }

// Init mounts the starting route and begins listening for session transitions.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForTransition(), m.navigate(m.start))
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

// View renders the UI based on the current route.
func (m *Model) View() string {
	if m.fatal != nil {
		return styles.err.Render(failureMessage) + "\n\n" + styles.help.Render("Press q to quit")
	}
	if m.suspended {
		return styles.help.Render("Loading...")
	}

	switch m.route {
	case models.RouteLogin, models.RouteSignup:
		return m.renderAuth()
	default:
		return m.renderShell()
	}
}

// navigate consults the guard and mounts the resulting route. Leaving a view drops its in-flight results.
func (m *Model) navigate(route models.Route) tea.Cmd {
	route = route.Canonical()
	if !route.Known() {
		route = models.RouteDashboard
	}

	decision := m.guard.Decide(route)
	if decision.Outcome == session.Redirect {
		m.deps.Logger.Debug("redirecting", "from", route, "to", decision.Target)
		route = decision.Target
	}

	m.leave()
	m.route = route
	m.suspended = decision.Outcome == session.Suspend
	if m.suspended {
		return nil
	}
	return m.mount()
}

// reevaluate applies a session transition to the current view.
func (m *Model) reevaluate() tea.Cmd {
	decision := m.guard.Decide(m.route)
	switch {
	case decision.Outcome == session.Redirect:
		return m.navigate(decision.Target)
	case decision.Outcome == session.Suspend:
		if !m.suspended {
			m.leave()
			m.suspended = true
		}
		return nil
	case m.suspended:
		return m.navigate(m.route)
	}
	return nil
}

func (m *Model) leave() {
	if m.feed != nil {
		m.feed.Unmount()
		m.feed = nil
	}
	m.gen++
	m.busy = false
	m.errs = nil
	m.notices = nil
}

func (m *Model) mount() tea.Cmd {
	if i := navIndex(m.route); i >= 0 {
		m.nav.Select(i)
	}

	switch m.route {
	case models.RouteLogin, models.RouteSignup:
		m.email.SetValue("")
		m.password.SetValue("")
		m.focusField(0)
		return textinput.Blink

	case models.RouteDetections:
		m.feed = tasks.NewDetectionFeed(m.deps.Backend, m.deps.Logger)
		m.table = newDetectionTable(m.buildTable(), m.tableHeight())
		m.busy = true
		return m.refreshDetections()

	case models.RouteSettings:
		m.feedURL = m.deps.DefaultFeed
		m.address.SetValue("")
		m.address.Focus()
		m.busy = true
		return m.loadSettings()

	case models.RouteVideo:
		m.feedURL = m.deps.DefaultFeed
		m.address.Blur()
		m.busy = true
		return m.resolveFeed()
	}
	return nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTransition:
		t := msg.data.(session.Transition)
		m.deps.Logger.Debug("session transition", "from", t.From, "to", t.To)
		return m, tea.Batch(m.reevaluate(), m.waitForTransition())
	case MsgTransitionsClosed:
		return m, nil
	case MsgFailure:
		m.fatal, _ = msg.data.(error)
		return m, nil
	case MsgLogoutDone:
		return m, m.navigate(msg.data.(routeResult).route)
	}

	if msg.gen != m.gen {
		m.deps.Logger.Debug("dropping result for a view that was left", "kind", msg.kind)
		return m, nil
	}
	m.busy = false

	switch msg.kind {
	case MsgLoginDone:
		res := msg.data.(routeResult)
		if res.err != nil {
			m.errs = []string{res.err.Error()}
			m.password.SetValue("")
			return m, nil
		}
		return m, m.navigate(res.route)

	case MsgSignupDone:
		res := msg.data.(signupResult)
		if res.err != nil {
			m.errs = []string{res.err.Error()}
			return m, nil
		}
		m.notices = []string{res.result.Notice}
		gen, target := m.gen, res.result.Redirect
		return m, tea.Tick(res.result.After, func(time.Time) tea.Msg {
			return redirectMsg(gen, target)
		})

	case MsgRedirect:
		return m, m.navigate(msg.data.(models.Route))

	case MsgDetectionsLoaded:
		m.errs = nil
		if err, _ := msg.data.(error); err != nil {
			m.errs = []string{msgDetectionsError}
		}
		m.table = newDetectionTable(m.buildTable(), m.tableHeight())

	case MsgSettingsLoaded:
		res := msg.data.(settingsResult)
		if res.err != nil {
			m.errs = []string{msgSettingsError}
			return m, nil
		}
		m.address.SetValue(res.settings.OBSServer)
		m.feedURL = res.settings.FeedURL(m.deps.DefaultFeed)

	case MsgFeedResolved:
		m.feedURL = msg.data.(string)

	case MsgSettingsSaved:
		res := msg.data.(settingsResult)
		m.errs, m.notices = nil, nil
		switch {
		case errors.Is(res.err, shared.ErrEmptyAddress):
			m.errs = []string{msgInvalidAddress}
		case res.err != nil:
			m.errs = []string{"Failed to update OBS server: " + res.err.Error()}
		default:
			m.address.SetValue(res.settings.OBSServer)
			m.notices = []string{msgSettingsSaved}
		}

	case MsgReportExported:
		res := msg.data.(exportResult)
		m.errs, m.notices = nil, nil
		if res.result != nil {
			for _, f := range res.result.Files {
				if f.Err == nil {
					m.notices = append(m.notices, "Report saved to "+f.Path)
				}
			}
		}
		if res.err != nil {
			m.errs = []string{"Failed to export report: " + res.err.Error()}
		}
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.forceQ) {
		return m, tea.Quit
	}
	if m.fatal != nil || m.suspended {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.route {
	case models.RouteLogin, models.RouteSignup:
		return m.handleAuthKeys(msg)
	default:
		return m.handleShellKeys(msg)
	}
}

func (m *Model) handleAuthKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.toggle):
		if m.route == models.RouteSignup {
			return m, m.navigate(models.RouteLogin)
		}
		return m, m.navigate(models.RouteSignup)
	case key.Matches(msg, m.keys.next, m.keys.prev):
		m.focusField(1 - m.focus)
		return m, nil
	case key.Matches(msg, m.keys.submit):
		if m.busy {
			return m, nil
		}
		if m.focus == 0 {
			m.focusField(1)
			return m, nil
		}
		return m, m.submitCredentials()
	}
	return m.updateInputs(msg)
}

func (m *Model) handleShellKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.logout):
		return m, m.logout()
	case key.Matches(msg, m.keys.next):
		return m, m.navigate(m.navStep(1))
	case key.Matches(msg, m.keys.prev):
		return m, m.navigate(m.navStep(-1))
	}

	if m.route == models.RouteSettings {
		if key.Matches(msg, m.keys.submit) && !m.busy {
			return m, m.saveSettings()
		}
		return m.updateInputs(msg)
	}

	if s := msg.String(); len(s) == 1 && s[0] >= '1' && int(s[0]-'1') < len(models.NavRoutes) {
		return m, m.navigate(models.NavRoutes[s[0]-'1'])
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case m.route != models.RouteDetections:
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.refreshDetections()
	case key.Matches(msg, m.keys.export):
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.exportReport()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.route {
	case models.RouteLogin, models.RouteSignup:
		var emailCmd, passwordCmd tea.Cmd
		m.email, emailCmd = m.email.Update(msg)
		m.password, passwordCmd = m.password.Update(msg)
		return m, tea.Batch(emailCmd, passwordCmd)
	case models.RouteSettings:
		var cmd tea.Cmd
		m.address, cmd = m.address.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) focusField(i int) {
	m.focus = i
	if i == 0 {
		m.email.Focus()
		m.password.Blur()
		return
	}
	m.email.Blur()
	m.password.Focus()
}

func (m *Model) navStep(delta int) models.Route {
	n := len(models.NavRoutes)
	i := max(navIndex(m.route), 0)
	return models.NavRoutes[((i+delta)%n+n)%n]
}

func (m *Model) userID() string {
	if id := m.deps.Store.CurrentIdentity(); id != nil {
		return id.ID
	}
	return ""
}

func (m *Model) tableHeight() int {
	if m.height == 0 {
		return defaultHeight
	}
	return max(m.height-14, 3)
}

func (m *Model) buildTable() formatter.Table {
	var records []models.DetectionRecord
	if m.feed != nil {
		records = m.feed.Records()
	}
	return formatter.BuildTable(m.deps.ReportTitle, records, formatter.DefaultColumns(m.deps.Location))
}

// run executes fn as a command. A panic becomes a [MsgFailure] and the error view.
func (m *Model) run(fn func() tea.Msg) tea.Cmd {
	logger := m.deps.Logger
	return func() (msg tea.Msg) {
		defer func() {
			if rv := recover(); rv != nil {
				logger.Error("command panicked", "panic", rv, "stack", string(debug.Stack()))
				msg = failureMsg(fmt.Errorf("%v", rv))
			}
		}()
		return fn()
	}
}

func (m *Model) waitForTransition() tea.Cmd {
	ch := m.transitions
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return transitionsClosedMsg()
		}
		return transitionMsg(t)
	}
}

func (m *Model) submitCredentials() tea.Cmd {
	m.busy = true
	m.errs = nil
	ctx, gw, gen := m.ctx, m.deps.Gateway, m.gen
	email, password := m.email.Value(), m.password.Value()

	if m.route == models.RouteSignup {
		return m.run(func() tea.Msg {
			res, err := gw.Signup(ctx, email, password)
			return signupDoneMsg(gen, res, err)
		})
	}
	return m.run(func() tea.Msg {
		route, err := gw.Login(ctx, email, password)
		return loginDoneMsg(gen, route, err)
	})
}

func (m *Model) logout() tea.Cmd {
	ctx, gw := m.ctx, m.deps.Gateway
	return m.run(func() tea.Msg {
		return logoutDoneMsg(gw.Logout(ctx))
	})
}

func (m *Model) refreshDetections() tea.Cmd {
	ctx, feed, gen := m.ctx, m.feed, m.gen
	return m.run(func() tea.Msg {
		return detectionsLoadedMsg(gen, feed.Refresh(ctx))
	})
}

func (m *Model) loadSettings() tea.Cmd {
	ctx, sync, gen, uid := m.ctx, m.deps.Settings, m.gen, m.userID()
	return m.run(func() tea.Msg {
		settings, err := sync.Load(ctx, uid)
		return settingsLoadedMsg(gen, settings, err)
	})
}

func (m *Model) resolveFeed() tea.Cmd {
	ctx, sync, gen, uid, fallback := m.ctx, m.deps.Settings, m.gen, m.userID(), m.deps.DefaultFeed
	return m.run(func() tea.Msg {
		url, _ := sync.FeedURL(ctx, uid, fallback)
		return feedResolvedMsg(gen, url)
	})
}

func (m *Model) saveSettings() tea.Cmd {
	m.busy = true
	ctx, sync, gen, uid := m.ctx, m.deps.Settings, m.gen, m.userID()
	address := m.address.Value()
	return m.run(func() tea.Msg {
		err := sync.Save(ctx, uid, address)
		return settingsSavedMsg(gen, strings.TrimSpace(address), err)
	})
}

func (m *Model) exportReport() tea.Cmd {
	ctx, gen := m.ctx, m.gen
	records := m.feed.Records()
	opts := tasks.ReportOpts{
		Title:     m.deps.ReportTitle,
		Location:  m.deps.Location,
		OutputDir: m.deps.ReportDir,
		OwnerID:   m.userID(),
		Recorder:  m.deps.Recorder,
	}
	return m.run(func() tea.Msg {
		result, err := tasks.ExportReports(ctx, nil, records, opts)
		return reportExportedMsg(gen, result, err)
	})
}

func (m *Model) renderFlashes(b *strings.Builder) {
	for _, e := range m.errs {
		b.WriteString(styles.err.Render(e) + "\n")
	}
	for _, n := range m.notices {
		b.WriteString(styles.ok.Render(n) + "\n")
	}
	if len(m.errs)+len(m.notices) > 0 {
		b.WriteString("\n")
	}
}

func (m *Model) renderAuth() string {
	title, greeting, alt := "Login", "Hi! Welcome back.", "Don't have an account? Press ctrl+n to sign up."
	if m.route == models.RouteSignup {
		title, greeting, alt = "Sign up", "Just a few quick things to get started", "Already have an account? Press ctrl+n to log in."
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(title) + "\n")
	b.WriteString(greeting + "\n\n")
	m.renderFlashes(&b)
	b.WriteString("Email\n" + m.email.View() + "\n\n")
	b.WriteString("Password\n" + m.password.View() + "\n\n")
	if m.busy {
		b.WriteString(styles.help.Render("Working...") + "\n\n")
	}
	b.WriteString(styles.help.Render(alt) + "\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.next, m.keys.submit, m.keys.toggle, m.keys.forceQ}))
	return b.String()
}

func (m *Model) renderShell() string {
	var user string
	if id := m.deps.Store.CurrentIdentity(); id != nil {
		user = id.DisplayName()
	}
	header := styles.header.Render("AetherScan · " + user)
	body := lipgloss.JoinHorizontal(lipgloss.Top, styles.nav.Render(m.nav.View()), styles.pane.Render(m.renderContent()))

	helpKeys := []key.Binding{m.keys.next, m.keys.prev, m.keys.logout}
	switch m.route {
	case models.RouteDetections:
		helpKeys = append(helpKeys, m.keys.up, m.keys.down, m.keys.refresh, m.keys.export, m.keys.quit)
	case models.RouteSettings:
		helpKeys = append(helpKeys, m.keys.submit, m.keys.forceQ)
	default:
		helpKeys = append(helpKeys, m.keys.quit)
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, body, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderContent() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(m.route.Title()) + "\n")
	m.renderFlashes(&b)

	switch m.route {
	case models.RouteDashboard:
		b.WriteString("Drone Status\n\n")
		for _, metric := range models.DroneStatus {
			fmt.Fprintf(&b, "%-18s %s\n", metric.Label, metric.Value)
		}
		b.WriteString("\nRecent Activity\n" + styles.help.Render("No recent activity to display."))

	case models.RouteAlerts:
		b.WriteString(styles.ok.Render("No Active Alerts") + "\n")
		b.WriteString("The system is operating normally. You will be notified here when there are any alerts.")

	case models.RouteVideo:
		b.WriteString("Drone Camera Feed\n\n")
		if m.busy {
			b.WriteString(styles.help.Render("Loading settings..."))
		} else {
			b.WriteString("Stream: " + m.feedURL)
		}

	case models.RouteMap:
		b.WriteString("Drone Location Map\n\n")
		b.WriteString(styles.help.Render("The interactive map will be displayed here, showing real-time drone location and flight path."))

	case models.RouteDetections:
		if m.busy {
			b.WriteString(styles.help.Render("Loading detections...") + "\n")
		}
		b.WriteString(m.table.View() + "\n")
		fmt.Fprintf(&b, "%d detections", len(m.table.Rows()))

	case models.RouteSupport:
		b.WriteString("Help Center\n\n")
		for _, r := range models.SupportResources {
			fmt.Fprintf(&b, "%s\n  %s\n  %s\n", styles.ok.Render(r.Title), r.Description, styles.help.Render(r.Action+": "+r.Link))
		}

	case models.RouteSettings:
		b.WriteString("OBS Server Address\n")
		b.WriteString(m.address.View())
	}
	return b.String()
}
