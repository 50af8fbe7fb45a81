// Package web serves the dashboard as server-rendered pages on top of the same session store, feed and
// settings sync the TUI uses.
//
// # Routes
//
//	GET  /login, /signup            public forms
//	POST /login, /signup, /logout   session changes, answered with 303 redirects
//	GET  /, /homepage               redirect to the dashboard
//	GET  /homepage/{view}           protected views behind [server.RequireSession]
//	POST /homepage/settings         save the OBS server address
//	GET  /homepage/drone-detection/report.pdf
//	                                download the detections report (?format=csv|markdown)
//
// Flash messages survive the post/redirect/get round trip in a gorilla/sessions cookie. Identity lives in
// the process-wide [session.Store], not in the cookie, so every POST must carry the gorilla/csrf form token
// rendered into the page it came from. Requests without one are answered with 403.
package web

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/server"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/desertthunder/dronewatch/internal/tasks"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	cookieName = "dronewatch"
	flashError = "error"
	flashInfo  = "notice"
	csrfField  = "csrf_token"
)

// Deps are the collaborators the web app renders from.
type Deps struct {
	Store    *session.Store
	Gateway  *session.Gateway
	Settings *tasks.SettingsSync
	Backend  tasks.APIClient
	Cookies  sessions.Store
	Logger   *log.Logger

	// CSRFKey signs the form token cookie. A random key is generated when it is not 32 bytes long.
	CSRFKey []byte

	DefaultFeed string
	ReportTitle string
	ReportName  string
	Location    *time.Location
}

// App holds parsed templates and dependencies for every page.
type App struct {
	Deps
	guard *session.Guard
	pages map[string]*template.Template
}

// NewCookieStore creates the flash cookie store. Cookies are HTTP-only and same-site lax.
func NewCookieStore(secret string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// NewCSRFKey derives the 32-byte form token key from the configured session secret.
func NewCSRFKey(secret string) []byte {
	sum := sha256.Sum256([]byte("csrf:" + secret))
	return sum[:]
}

// NewApp parses the embedded templates and wires the app.
func NewApp(deps Deps) (*App, error) {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if len(deps.CSRFKey) != 32 {
		deps.CSRFKey = make([]byte, 32)
		if _, err := rand.Read(deps.CSRFKey); err != nil {
			return nil, fmt.Errorf("failed to generate csrf key: %w", err)
		}
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{"login", "signup", "dashboard", "alerts", "video", "map", "support", "detections", "settings"} {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &App{
		Deps:  deps,
		guard: session.NewGuard(deps.Store),
		pages: pages,
	}, nil
}

// Handler builds the router with logging, panic recovery, form token checks and the session gate on
// protected routes.
func (a *App) Handler() http.Handler {
	r := server.NewBasicRouter()
	r.Use(server.RequestLogger(a.Logger), server.Recover(a.Logger), a.requireFormToken())

	r.HandleFunc(http.MethodGet, models.RouteLogin.String(), a.loginPage)
	r.HandleFunc(http.MethodPost, models.RouteLogin.String(), a.login)
	r.HandleFunc(http.MethodGet, models.RouteSignup.String(), a.signupPage)
	r.HandleFunc(http.MethodPost, models.RouteSignup.String(), a.signup)
	r.HandleFunc(http.MethodPost, "/logout", a.logout)

	protect := server.RequireSession(a.guard)
	guarded := func(method, path string, fn http.HandlerFunc) {
		r.Handle(method, path, protect(fn))
	}

	guarded(http.MethodGet, models.RouteRoot.String(), a.index)
	guarded(http.MethodGet, models.RouteHome.String(), a.index)
	guarded(http.MethodGet, models.RouteDashboard.String(), a.staticPage("dashboard", models.RouteDashboard, dashboardData()))
	guarded(http.MethodGet, models.RouteAlerts.String(), a.staticPage("alerts", models.RouteAlerts, nil))
	guarded(http.MethodGet, models.RouteMap.String(), a.staticPage("map", models.RouteMap, nil))
	guarded(http.MethodGet, models.RouteSupport.String(), a.staticPage("support", models.RouteSupport, supportData()))
	guarded(http.MethodGet, models.RouteVideo.String(), a.videoPage)
	guarded(http.MethodGet, models.RouteDetections.String(), a.detectionsPage)
	guarded(http.MethodGet, models.RouteDetections.String()+"/report.pdf", a.report)
	guarded(http.MethodGet, models.RouteSettings.String(), a.settingsPage)
	guarded(http.MethodPost, models.RouteSettings.String(), a.saveSettings)

	return r
}

// requireFormToken rejects unsafe requests whose form token does not match the token cookie.
// The dashboard is served over plain HTTP, so requests without TLS are marked as such for the origin checks.
func (a *App) requireFormToken() server.Middleware {
	protect := csrf.Protect(a.CSRFKey,
		csrf.Secure(false),
		csrf.HttpOnly(true),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.FieldName(csrfField),
		csrf.ErrorHandler(http.HandlerFunc(a.forbidden)),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func (a *App) forbidden(w http.ResponseWriter, r *http.Request) {
	a.Logger.Warn("rejected form submission", "path", r.URL.Path, "reason", csrf.FailureReason(r))
	http.Error(w, "Invalid or missing form token.", http.StatusForbidden)
}

type navItem struct {
	Route  models.Route
	Title  string
	Active bool
}

// pageData is what base.html renders. Data carries the page-specific fields.
type pageData struct {
	Title        string
	CSRFField    template.HTML
	User         *models.Identity
	Nav          []navItem
	Errors       []string
	Notices      []string
	RefreshTo    models.Route
	RefreshAfter int
	Data         any
}

func (a *App) newPage(r *http.Request, route models.Route, data any) pageData {
	page := pageData{Title: route.Title(), CSRFField: csrf.TemplateField(r), Data: data}

	if user := a.Store.CurrentIdentity(); user != nil && !route.Public() {
		page.User = user
		for _, nr := range models.NavRoutes {
			page.Nav = append(page.Nav, navItem{Route: nr, Title: nr.Title(), Active: nr == route})
		}
	}
	return page
}

// flash queues a message for the next rendered page.
func (a *App) flash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	sess, err := a.Cookies.Get(r, cookieName)
	if err != nil {
		a.Logger.Warn("discarding unreadable session cookie", "error", err)
	}
	sess.AddFlash(msg, kind)
	if err := sess.Save(r, w); err != nil {
		a.Logger.Error("failed to save flash", "error", err)
	}
}

// takeFlashes moves queued messages into page and clears them from the cookie.
func (a *App) takeFlashes(w http.ResponseWriter, r *http.Request, page *pageData) {
	sess, err := a.Cookies.Get(r, cookieName)
	if err != nil {
		return
	}
	for _, f := range sess.Flashes(flashError) {
		if s, ok := f.(string); ok {
			page.Errors = append(page.Errors, s)
		}
	}
	for _, f := range sess.Flashes(flashInfo) {
		if s, ok := f.(string); ok {
			page.Notices = append(page.Notices, s)
		}
	}
	if err := sess.Save(r, w); err != nil {
		a.Logger.Error("failed to clear flashes", "error", err)
	}
}

// render executes a page into a buffer first so template failures become a clean 500.
func (a *App) render(w http.ResponseWriter, r *http.Request, name string, page pageData) {
	a.takeFlashes(w, r, &page)

	var buf bytes.Buffer
	if err := a.pages[name].ExecuteTemplate(&buf, "base", page); err != nil {
		a.Logger.Error("failed to render page", "page", name, "id", server.RequestID(r.Context()), "error", err)
		http.Error(w, server.FallbackMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func redirect(w http.ResponseWriter, r *http.Request, route models.Route) {
	http.Redirect(w, r, route.String(), http.StatusSeeOther)
}
