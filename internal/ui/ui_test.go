package ui

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/services"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/desertthunder/dronewatch/internal/tasks"
	tu "github.com/desertthunder/dronewatch/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultFeed    = "http://localhost:5001/video_feed"
	detectionsJSON = `[{"id": 3, "created_at": "2024-05-01T12:30:00Z", "detection_data": {"object_detected": "drone", "confidence": 0.88}}]`
)

var pilot = &models.Identity{ID: "u-1", Email: "pilot@example.com"}

type harness struct {
	provider *tu.MockIdentityProvider
	table    *tu.MockSettingsTable
	api      *tu.MockAPIClient
	store    *session.Store
	dir      string
}

func newHarness(t *testing.T, provider *tu.MockIdentityProvider, start bool) *harness {
	t.Helper()

	h := &harness{
		provider: provider,
		table:    tu.NewMockSettingsTable(),
		api:      &tu.MockAPIClient{Response: &services.APIResponse{StatusCode: http.StatusOK, Body: []byte(detectionsJSON)}},
		store:    session.NewStore(provider, nil),
		dir:      t.TempDir(),
	}
	t.Cleanup(h.store.Close)

	if start {
		h.start(t)
	}
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.store.Start(context.Background()))
	require.Eventually(t, func() bool { return !h.store.IsLoading() }, time.Second, 5*time.Millisecond)
}

func (h *harness) model(t *testing.T) *Model {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return NewModel(ctx, Deps{
		Store:       h.store,
		Gateway:     session.NewGateway(h.store, h.provider, &tu.MockIdentityCache{}, nil),
		Settings:    tasks.NewSettingsSync(h.table, "", nil),
		Backend:     h.api,
		DefaultFeed: defaultFeed,
		ReportDir:   h.dir,
	}, models.RouteRoot)
}

// settle runs cmd and feeds each resulting message back into the model until a command yields something
// other than a [Msg].
func settle(m *Model, cmd tea.Cmd) {
	for cmd != nil {
		msg, ok := cmd().(Msg)
		if !ok {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

func typeRunes(m *Model, s string) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return cmd
}

func TestAuthScreens(t *testing.T) {
	t.Run("Protected Route Redirects To Login", func(t *testing.T) {
		m := newHarness(t, &tu.MockIdentityProvider{}, true).model(t)

		settle(m, m.navigate(models.RouteDashboard))
		assert.Equal(t, models.RouteLogin, m.Route())
		assert.Contains(t, m.View(), "Hi! Welcome back.")
	})

	t.Run("Login Success Mounts Dashboard", func(t *testing.T) {
		h := newHarness(t, &tu.MockIdentityProvider{SignInIdentity: pilot}, true)
		m := h.model(t)
		settle(m, m.navigate(models.RouteLogin))

		m.email.SetValue("pilot@example.com")
		m.password.SetValue("hunter2")
		m.focusField(1)
		settle(m, press(m, tea.KeyEnter))

		assert.Equal(t, models.RouteDashboard, m.Route())
		assert.Equal(t, pilot, h.store.CurrentIdentity())
		view := m.View()
		assert.Contains(t, view, "Drone Status")
		assert.Contains(t, view, "pilot@example.com")
	})

	t.Run("Login Failure Shows Provider Message", func(t *testing.T) {
		provider := &tu.MockIdentityProvider{SignInErr: &services.ProviderError{
			Status: 400, Message: "Invalid login credentials", Kind: shared.ErrInvalidCredentials,
		}}
		m := newHarness(t, provider, true).model(t)
		settle(m, m.navigate(models.RouteLogin))

		m.email.SetValue("pilot@example.com")
		m.password.SetValue("wrong")
		m.focusField(1)
		settle(m, press(m, tea.KeyEnter))

		assert.Equal(t, models.RouteLogin, m.Route())
		assert.Contains(t, m.View(), "Invalid login credentials")
		assert.Empty(t, m.password.Value())
	})

	t.Run("Enter On Email Moves To Password", func(t *testing.T) {
		h := newHarness(t, &tu.MockIdentityProvider{}, true)
		m := h.model(t)
		settle(m, m.navigate(models.RouteLogin))

		cmd := press(m, tea.KeyEnter)
		assert.Nil(t, cmd)
		assert.Equal(t, 1, m.focus)
		assert.Zero(t, h.provider.Calls("SignInWithPassword"))
	})

	t.Run("Toggle Between Login And Signup", func(t *testing.T) {
		m := newHarness(t, &tu.MockIdentityProvider{}, true).model(t)
		settle(m, m.navigate(models.RouteLogin))

		settle(m, press(m, tea.KeyCtrlN))
		assert.Equal(t, models.RouteSignup, m.Route())
		assert.Contains(t, m.View(), "Just a few quick things to get started")

		settle(m, press(m, tea.KeyCtrlN))
		assert.Equal(t, models.RouteLogin, m.Route())
	})

	t.Run("Signup Notice Then Delayed Redirect", func(t *testing.T) {
		h := newHarness(t, &tu.MockIdentityProvider{SignUpIdentity: pilot}, true)
		m := h.model(t)
		settle(m, m.navigate(models.RouteSignup))

		m.email.SetValue("pilot@example.com")
		m.password.SetValue("hunter2")
		m.focusField(1)
		cmd := press(m, tea.KeyEnter)
		require.NotNil(t, cmd)

		_, tick := m.Update(cmd())
		assert.NotNil(t, tick)
		assert.Equal(t, models.RouteSignup, m.Route())
		assert.Contains(t, m.View(), session.SignupNotice)
		assert.Nil(t, h.store.CurrentIdentity())

		m.Update(redirectMsg(m.gen, models.RouteLogin))
		assert.Equal(t, models.RouteLogin, m.Route())
	})
}

func TestSessionTransitions(t *testing.T) {
	t.Run("Loading Suspends Protected Views", func(t *testing.T) {
		h := newHarness(t, &tu.MockIdentityProvider{Initial: pilot}, false)
		m := h.model(t)

		settle(m, m.navigate(models.RouteDashboard))
		assert.True(t, m.suspended)
		assert.Equal(t, "Loading...", strings.TrimSpace(stripANSI(m.View())))

		h.start(t)
		m.Update(transitionMsg(session.Transition{From: session.StateLoading, To: session.StateAuthenticated}))
		assert.False(t, m.suspended)
		assert.Equal(t, models.RouteDashboard, m.Route())
	})

	t.Run("Sign Out Elsewhere Redirects", func(t *testing.T) {
		h := newHarness(t, &tu.MockIdentityProvider{Initial: pilot}, true)
		m := h.model(t)
		settle(m, m.navigate(models.RouteSettings))

		h.provider.Emit(services.AuthEvent{Kind: services.SignedOut})
		m.Update(transitionMsg(session.Transition{From: session.StateAuthenticated, To: session.StateUnauthenticated}))
		assert.Equal(t, models.RouteLogin, m.Route())
	})

	t.Run("Transitions Reach The Model", func(t *testing.T) {
		h := newHarness(t, &tu.MockIdentityProvider{Initial: pilot}, true)
		m := h.model(t)
		settle(m, m.navigate(models.RouteDashboard))

		wait := m.waitForTransition()
		h.provider.Emit(services.AuthEvent{Kind: services.SignedOut})

		got := make(chan tea.Msg, 1)
		go func() { got <- wait() }()

		select {
		case msg := <-got:
			m.Update(msg)
		case <-time.After(time.Second):
			t.Fatal("no transition delivered")
		}
		assert.Equal(t, models.RouteLogin, m.Route())
	})

	t.Run("Logout Key", func(t *testing.T) {
		h := newHarness(t, &tu.MockIdentityProvider{Initial: pilot}, true)
		m := h.model(t)
		settle(m, m.navigate(models.RouteDashboard))

		settle(m, press(m, tea.KeyCtrlX))
		assert.Equal(t, models.RouteLogin, m.Route())
		assert.Nil(t, h.store.CurrentIdentity())
		assert.Equal(t, 1, h.provider.Calls("SignOut"))
	})
}

func TestShell(t *testing.T) {
	signedIn := func(t *testing.T) (*harness, *Model) {
		h := newHarness(t, &tu.MockIdentityProvider{Initial: pilot}, true)
		m := h.model(t)
		settle(m, m.navigate(models.RouteDashboard))
		return h, m
	}

	t.Run("Tab Cycles Navigation", func(t *testing.T) {
		_, m := signedIn(t)

		settle(m, press(m, tea.KeyTab))
		assert.Equal(t, models.RouteAlerts, m.Route())
		assert.Contains(t, m.View(), "No Active Alerts")

		settle(m, press(m, tea.KeyShiftTab))
		settle(m, press(m, tea.KeyShiftTab))
		assert.Equal(t, models.RouteSettings, m.Route())
	})

	t.Run("Digits Jump To Views", func(t *testing.T) {
		_, m := signedIn(t)

		settle(m, typeRunes(m, "6"))
		assert.Equal(t, models.RouteSupport, m.Route())
		assert.Contains(t, m.View(), "mailto:support@aetherscan.com")
	})

	t.Run("Detections Table", func(t *testing.T) {
		h, m := signedIn(t)

		settle(m, m.navigate(models.RouteDetections))
		rows := m.table.Rows()
		require.Len(t, rows, 1)
		assert.Equal(t, "3", rows[0][0])
		assert.Equal(t, "drone", rows[0][1])
		assert.Equal(t, "2024-05-01 12:30:00", rows[0][5])
		assert.Contains(t, m.View(), "1 detections")

		settle(m, typeRunes(m, "r"))
		assert.Equal(t, 2, h.api.Gets())
		assert.Empty(t, h.api.Posts())
	})

	t.Run("Detections Failure", func(t *testing.T) {
		h, m := signedIn(t)
		h.api.Err = shared.ErrNetworkFailure

		settle(m, m.navigate(models.RouteDetections))
		assert.Equal(t, []string{msgDetectionsError}, m.errs)
		assert.Empty(t, m.table.Rows())
	})

	t.Run("Leaving Drops In Flight Results", func(t *testing.T) {
		h, m := signedIn(t)
		h.api.Err = shared.ErrNetworkFailure

		pending := m.navigate(models.RouteDetections)
		settle(m, m.navigate(models.RouteAlerts))

		m.Update(pending())
		assert.Equal(t, models.RouteAlerts, m.Route())
		assert.Empty(t, m.errs)
	})

	t.Run("Export Report", func(t *testing.T) {
		h, m := signedIn(t)
		settle(m, m.navigate(models.RouteDetections))

		settle(m, typeRunes(m, "e"))
		path := filepath.Join(h.dir, "detections_report.pdf")
		assert.Equal(t, []string{"Report saved to " + path}, m.notices)
		tu.AssertFileExists(t, path)
	})

	t.Run("Settings Inserts Default", func(t *testing.T) {
		h, m := signedIn(t)

		settle(m, m.navigate(models.RouteSettings))
		assert.Equal(t, tasks.DefaultOBSServer, m.address.Value())
		assert.Equal(t, 1, h.table.Calls("Insert"))
	})

	t.Run("Typing In Settings Does Not Quit", func(t *testing.T) {
		_, m := signedIn(t)
		settle(m, m.navigate(models.RouteSettings))
		m.address.SetValue("")

		typeRunes(m, "q")
		assert.Equal(t, "q", m.address.Value())
		assert.Equal(t, models.RouteSettings, m.Route())
	})

	t.Run("Blank Address Rejected", func(t *testing.T) {
		h, m := signedIn(t)
		settle(m, m.navigate(models.RouteSettings))

		m.address.SetValue("   ")
		settle(m, press(m, tea.KeyEnter))
		assert.Equal(t, []string{msgInvalidAddress}, m.errs)
		assert.Zero(t, h.table.Calls("Update"))
	})

	t.Run("Save Address", func(t *testing.T) {
		h, m := signedIn(t)
		settle(m, m.navigate(models.RouteSettings))

		m.address.SetValue(" 10.0.0.9 ")
		settle(m, press(m, tea.KeyEnter))
		assert.Equal(t, []string{msgSettingsSaved}, m.notices)

		row, ok := h.table.Row("u-1")
		require.True(t, ok)
		assert.Equal(t, "10.0.0.9", row.OBSServer)
	})

	t.Run("Video Uses Saved Server", func(t *testing.T) {
		h, m := signedIn(t)
		h.table.Insert(context.Background(), models.Settings{OwnerID: "u-1", OBSServer: "10.0.0.5"})

		settle(m, m.navigate(models.RouteVideo))
		assert.Contains(t, m.View(), "http://10.0.0.5:5001/video_feed")
	})

	t.Run("Video Does Not Create Settings", func(t *testing.T) {
		h, m := signedIn(t)

		settle(m, m.navigate(models.RouteVideo))
		assert.Equal(t, defaultFeed, m.feedURL)
		assert.Zero(t, h.table.Calls("Insert"))
		_, ok := h.table.Row("u-1")
		assert.False(t, ok)
	})

	t.Run("Video Falls Back To Default Feed", func(t *testing.T) {
		h, m := signedIn(t)
		h.table.SelectErr = shared.ErrServiceUnavailable

		settle(m, m.navigate(models.RouteVideo))
		assert.Equal(t, defaultFeed, m.feedURL)
		assert.Empty(t, m.errs)
	})
}

func TestFailureView(t *testing.T) {
	m := newHarness(t, &tu.MockIdentityProvider{Initial: pilot}, true).model(t)
	settle(m, m.navigate(models.RouteDashboard))

	settle(m, m.run(func() tea.Msg { panic("nil map write") }))
	view := m.View()
	assert.Contains(t, view, failureMessage)
	assert.NotContains(t, view, "nil map write")

	cmd := press(m, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

// stripANSI removes terminal escape sequences from rendered output.
func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEsc = false
		case !inEsc:
			b.WriteRune(r)
		}
	}
	return b.String()
}
