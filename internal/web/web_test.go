package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/services"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/desertthunder/dronewatch/internal/tasks"
	tu "github.com/desertthunder/dronewatch/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultFeed = "http://localhost:5001/video_feed"

var pilot = &models.Identity{ID: "u-1", Email: "pilot@example.com"}

type fixture struct {
	server   *httptest.Server
	client   *http.Client
	store    *session.Store
	provider *tu.MockIdentityProvider
	table    *tu.MockSettingsTable
	api      *tu.MockAPIClient
}

type fixtureOpts struct {
	provider *tu.MockIdentityProvider
	table    *tu.MockSettingsTable
	api      *tu.MockAPIClient
	noStart  bool
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	if opts.provider == nil {
		opts.provider = &tu.MockIdentityProvider{}
	}
	if opts.table == nil {
		opts.table = tu.NewMockSettingsTable()
	}
	if opts.api == nil {
		opts.api = &tu.MockAPIClient{Response: &services.APIResponse{StatusCode: http.StatusOK, Body: []byte(`[]`)}}
	}

	store := session.NewStore(opts.provider, nil)
	t.Cleanup(store.Close)
	if !opts.noStart {
		require.NoError(t, store.Start(context.Background()))
		require.Eventually(t, func() bool { return !store.IsLoading() }, time.Second, 5*time.Millisecond)
	}

	app, err := NewApp(Deps{
		Store:       store,
		Gateway:     session.NewGateway(store, opts.provider, &tu.MockIdentityCache{}, nil),
		Settings:    tasks.NewSettingsSync(opts.table, "", nil),
		Backend:     opts.api,
		Cookies:     NewCookieStore("0123456789abcdef0123456789abcdef"),
		DefaultFeed: defaultFeed,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler())
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	t.Cleanup(func() {
		client.CloseIdleConnections()
		srv.Close()
	})

	return &fixture{server: srv, client: client, store: store, provider: opts.provider, table: opts.table, api: opts.api}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

var formTokenPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// formToken reads the hidden form token from the login page, which renders in every session state.
func (f *fixture) formToken(t *testing.T) string {
	t.Helper()
	_, body := f.get(t, models.RouteLogin.String())
	m := formTokenPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "login page should render a form token")
	return m[1]
}

// post submits form the way a rendered page would, including the form token.
func (f *fixture) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", f.formToken(t))
	return f.postRaw(t, path, form)
}

func (f *fixture) postRaw(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := f.client.PostForm(f.server.URL+path, form)
	require.NoError(t, err)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func TestGuardedPages(t *testing.T) {
	t.Run("Signed Out Redirects To Login", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})

		for _, route := range append([]models.Route{models.RouteRoot, models.RouteHome}, models.NavRoutes...) {
			resp, _ := f.get(t, route.String())
			assert.Equal(t, http.StatusSeeOther, resp.StatusCode, route)
			assert.Equal(t, "/login", resp.Header.Get("Location"), route)
		}
	})

	t.Run("Loading Suspends", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{noStart: true})

		resp, body := f.get(t, models.RouteDashboard.String())
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Empty(t, body)

		resp, _ = f.get(t, models.RouteLogin.String())
		assert.Equal(t, http.StatusOK, resp.StatusCode, "login renders while loading")
	})

	t.Run("Signed In Renders Shell", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})

		resp, _ := f.get(t, "/")
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/homepage/dashboard", resp.Header.Get("Location"))

		resp, body := f.get(t, models.RouteDashboard.String())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Drone Status")
		assert.Contains(t, body, "Battery Level")
		assert.Contains(t, body, "pilot@example.com")
		for _, route := range models.NavRoutes {
			assert.Contains(t, body, `href="`+route.String()+`"`)
		}
	})

	t.Run("Static Views", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})

		want := map[models.Route]string{
			models.RouteAlerts:  "No Active Alerts",
			models.RouteMap:     "Drone Location Map",
			models.RouteSupport: "mailto:support@aetherscan.com",
		}
		for route, text := range want {
			resp, body := f.get(t, route.String())
			assert.Equal(t, http.StatusOK, resp.StatusCode, route)
			assert.Contains(t, body, text, route)
		}
	})
}

func TestAuthFlow(t *testing.T) {
	t.Run("Login Success", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{SignInIdentity: pilot}})

		resp := f.post(t, "/login", url.Values{"email": {"pilot@example.com"}, "password": {"hunter2"}})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/homepage", resp.Header.Get("Location"))
		assert.Equal(t, pilot, f.store.CurrentIdentity())

		resp, _ = f.get(t, models.RouteSettings.String())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Login Failure Shows Provider Message Once", func(t *testing.T) {
		provider := &tu.MockIdentityProvider{SignInErr: &services.ProviderError{
			Status: 400, Message: "Invalid login credentials", Kind: shared.ErrInvalidCredentials,
		}}
		f := newFixture(t, fixtureOpts{provider: provider})

		resp := f.post(t, "/login", url.Values{"email": {"pilot@example.com"}, "password": {"nope"}})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
		assert.Nil(t, f.store.CurrentIdentity())

		_, body := f.get(t, "/login")
		assert.Contains(t, body, "Invalid login credentials")

		_, body = f.get(t, "/login")
		assert.NotContains(t, body, "Invalid login credentials")
	})

	t.Run("Empty Credentials", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})

		f.post(t, "/login", url.Values{"email": {""}, "password": {""}})
		_, body := f.get(t, "/login")
		assert.Contains(t, body, "email and password are required")
		assert.Zero(t, f.provider.Calls("SignInWithPassword"))
	})

	t.Run("Signup Success", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{SignUpIdentity: pilot}})

		form := url.Values{"email": {"pilot@example.com"}, "password": {"hunter2"}, "csrf_token": {f.formToken(t)}}
		resp, err := f.client.PostForm(f.server.URL+"/signup", form)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "Account created successfully!")
		assert.Contains(t, string(body), "2;url=/login")
		assert.Nil(t, f.store.CurrentIdentity())
	})

	t.Run("Signup Failure", func(t *testing.T) {
		provider := &tu.MockIdentityProvider{SignUpErr: &services.ProviderError{
			Status: 422, Message: "User already registered", Kind: shared.ErrProviderRejected,
		}}
		f := newFixture(t, fixtureOpts{provider: provider})

		resp := f.post(t, "/signup", url.Values{"email": {"pilot@example.com"}, "password": {"hunter2"}})
		assert.Equal(t, "/signup", resp.Header.Get("Location"))

		_, body := f.get(t, "/signup")
		assert.Contains(t, body, "User already registered")
	})

	t.Run("Logout Closes Protected Pages", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})

		resp := f.post(t, "/logout", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))

		resp, _ = f.get(t, models.RouteSettings.String())
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})
}

const detectionsJSON = `[
	{"id": 7, "created_at": "2024-05-01T12:30:00Z",
	 "detection_data": "{\"object_detected\":\"drone\",\"confidence\":0.93,\"latitude\":40.7128,\"longitude\":-74.006}"}
]`

func TestDetections(t *testing.T) {
	signedIn := &tu.MockIdentityProvider{Initial: pilot}

	t.Run("Table", func(t *testing.T) {
		api := &tu.MockAPIClient{Response: &services.APIResponse{StatusCode: http.StatusOK, Body: []byte(detectionsJSON)}}
		f := newFixture(t, fixtureOpts{provider: signedIn, api: api})

		resp, body := f.get(t, models.RouteDetections.String())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "<th>Created At</th>")
		assert.Contains(t, body, "<td>drone</td>")
		assert.Contains(t, body, "<td>2024-05-01 12:30:00</td>")
		assert.Empty(t, api.Posts(), "viewing the log must not post")
	})

	t.Run("Backend Failure", func(t *testing.T) {
		api := &tu.MockAPIClient{Err: shared.ErrNetworkFailure}
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}, api: api})

		resp, body := f.get(t, models.RouteDetections.String())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Failed to load detections.")
		assert.Contains(t, body, "No detections recorded.")
	})

	t.Run("PDF Report", func(t *testing.T) {
		api := &tu.MockAPIClient{Response: &services.APIResponse{StatusCode: http.StatusOK, Body: []byte(detectionsJSON)}}
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}, api: api})

		resp, body := f.get(t, "/homepage/drone-detection/report.pdf")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "detections_report.pdf")
		assert.True(t, strings.HasPrefix(body, "%PDF-"))
	})

	t.Run("CSV Report", func(t *testing.T) {
		api := &tu.MockAPIClient{Response: &services.APIResponse{StatusCode: http.StatusOK, Body: []byte(detectionsJSON)}}
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}, api: api})

		resp, body := f.get(t, "/homepage/drone-detection/report.pdf?format=csv")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, strings.HasPrefix(body, "ID,Object,Confidence,Latitude,Longitude,Created At\n"))
		assert.Contains(t, body, "7,drone,0.93,40.7128,-74.006,2024-05-01 12:30:00")
	})

	t.Run("Unknown Report Format", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})

		resp, _ := f.get(t, "/homepage/drone-detection/report.pdf?format=xlsx")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Report Requires Session", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})

		resp, _ := f.get(t, "/homepage/drone-detection/report.pdf")
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	})
}

func TestSettingsPages(t *testing.T) {
	t.Run("First Visit Inserts Default", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})

		resp, body := f.get(t, models.RouteSettings.String())
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, `value="98.84.14.247"`)
		assert.Equal(t, 1, f.table.Calls("Insert"))
	})

	t.Run("Blank Address Rejected Without Request", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})

		resp := f.post(t, models.RouteSettings.String(), url.Values{"obs_server": {"   "}})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Zero(t, f.table.Calls("Update"))

		_, body := f.get(t, models.RouteSettings.String())
		assert.Contains(t, body, "Please enter a valid OBS server address.")
	})

	t.Run("Save", func(t *testing.T) {
		table := tu.NewMockSettingsTable(models.Settings{OwnerID: "u-1", OBSServer: "old"})
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}, table: table})

		f.post(t, models.RouteSettings.String(), url.Values{"obs_server": {"10.0.0.5"}})

		_, body := f.get(t, models.RouteSettings.String())
		assert.Contains(t, body, "Settings updated successfully!")
		assert.Contains(t, body, `value="10.0.0.5"`)
	})

	t.Run("Save Failure Shows Provider Message", func(t *testing.T) {
		table := tu.NewMockSettingsTable(models.Settings{OwnerID: "u-1", OBSServer: "old"})
		table.UpdateErr = &services.ProviderError{Status: 403, Message: "permission denied", Kind: shared.ErrNotAuthenticated}
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}, table: table})

		f.post(t, models.RouteSettings.String(), url.Values{"obs_server": {"10.0.0.5"}})
		_, body := f.get(t, models.RouteSettings.String())
		assert.Contains(t, body, "Failed to update OBS server: permission denied")
	})

	t.Run("Video Uses Saved Server", func(t *testing.T) {
		table := tu.NewMockSettingsTable(models.Settings{OwnerID: "u-1", OBSServer: "10.0.0.5"})
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}, table: table})

		_, body := f.get(t, models.RouteVideo.String())
		assert.Contains(t, body, `src="http://10.0.0.5:5001/video_feed"`)
	})

	t.Run("Video Does Not Create Settings", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})

		_, body := f.get(t, models.RouteVideo.String())
		assert.Contains(t, body, `src="`+defaultFeed+`"`)
		assert.Zero(t, f.table.Calls("Insert"))
	})

	t.Run("Video Falls Back When Settings Fail", func(t *testing.T) {
		table := tu.NewMockSettingsTable()
		table.SelectErr = shared.ErrServiceUnavailable
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}, table: table})

		_, body := f.get(t, models.RouteVideo.String())
		assert.Contains(t, body, `src="`+defaultFeed+`"`)
	})
}

func TestFormTokens(t *testing.T) {
	t.Run("Forms Without Token Are Forbidden", func(t *testing.T) {
		table := tu.NewMockSettingsTable(models.Settings{OwnerID: "u-1", OBSServer: "old"})
		provider := &tu.MockIdentityProvider{Initial: pilot, SignInIdentity: pilot}
		f := newFixture(t, fixtureOpts{provider: provider, table: table})

		resp := f.postRaw(t, models.RouteSettings.String(), url.Values{"obs_server": {"203.0.113.9"}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, table.Calls("Update"))

		resp = f.postRaw(t, "/logout", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, pilot, f.store.CurrentIdentity())

		resp = f.postRaw(t, "/login", url.Values{"email": {"pilot@example.com"}, "password": {"hunter2"}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, provider.Calls("SignInWithPassword"))
	})

	t.Run("Forged Token Is Forbidden", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})
		f.formToken(t)

		resp := f.postRaw(t, models.RouteSettings.String(), url.Values{"obs_server": {"203.0.113.9"}, "csrf_token": {"bm90LWEtdG9rZW4="}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, f.table.Calls("Update"))
	})

	t.Run("Cross Origin Post Is Forbidden", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})
		form := url.Values{"obs_server": {"203.0.113.9"}, "csrf_token": {f.formToken(t)}}

		req, err := http.NewRequest(http.MethodPost, f.server.URL+models.RouteSettings.String(), strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Origin", "http://attacker.example")

		resp, err := f.client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, f.table.Calls("Update"))
	})

	t.Run("Rendered Token Is Accepted", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{provider: &tu.MockIdentityProvider{Initial: pilot}})

		resp := f.post(t, models.RouteSettings.String(), url.Values{"obs_server": {"10.0.0.5"}})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, 1, f.table.Calls("Update"))

		_, body := f.get(t, models.RouteSettings.String())
		assert.Contains(t, body, `name="csrf_token"`)
	})
}
