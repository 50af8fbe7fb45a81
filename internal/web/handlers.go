package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/dronewatch/internal/formatter"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/desertthunder/dronewatch/internal/tasks"
)

const (
	msgSettingsSaved   = "Settings updated successfully!"
	msgInvalidAddress  = "Please enter a valid OBS server address."
	msgDetectionsError = "Failed to load detections."
	msgSettingsError   = "Failed to load settings."
)

type credentialsData struct {
	Email string
}

type videoData struct {
	FeedURL string
}

type detectionsData struct {
	Table formatter.Table
}

type settingsData struct {
	OBSServer string
}

func dashboardData() any {
	return struct{ Metrics []models.Metric }{Metrics: models.DroneStatus}
}

func supportData() any {
	return struct{ Resources []models.Resource }{Resources: models.SupportResources}
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "login", a.newPage(r, models.RouteLogin, credentialsData{Email: r.URL.Query().Get("email")}))
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.flash(w, r, flashError, "Invalid form submission.")
		redirect(w, r, models.RouteLogin)
		return
	}

	route, err := a.Gateway.Login(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		a.flash(w, r, flashError, err.Error())
		redirect(w, r, models.RouteLogin)
		return
	}
	redirect(w, r, route)
}

func (a *App) signupPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "signup", a.newPage(r, models.RouteSignup, credentialsData{}))
}

func (a *App) signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.flash(w, r, flashError, "Invalid form submission.")
		redirect(w, r, models.RouteSignup)
		return
	}

	email := r.PostForm.Get("email")
	res, err := a.Gateway.Signup(r.Context(), email, r.PostForm.Get("password"))
	if err != nil {
		a.flash(w, r, flashError, err.Error())
		redirect(w, r, models.RouteSignup)
		return
	}

	page := a.newPage(r, models.RouteSignup, credentialsData{Email: email})
	page.Notices = append(page.Notices, res.Notice)
	page.RefreshTo = res.Redirect
	page.RefreshAfter = int(res.After.Seconds())
	a.render(w, r, "signup", page)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, a.Gateway.Logout(r.Context()))
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	redirect(w, r, models.Route(r.URL.Path).Canonical())
}

func (a *App) staticPage(name string, route models.Route, data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.render(w, r, name, a.newPage(r, route, data))
	}
}

// currentUser returns the signed-in identity, or sends the client to the login page.
func (a *App) currentUser(w http.ResponseWriter, r *http.Request) (*models.Identity, bool) {
	user := a.Store.CurrentIdentity()
	if user == nil {
		redirect(w, r, models.RouteLogin)
		return nil, false
	}
	return user, true
}

func (a *App) videoPage(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}

	feed, _ := a.Settings.FeedURL(r.Context(), user.ID, a.DefaultFeed)
	a.render(w, r, "video", a.newPage(r, models.RouteVideo, videoData{FeedURL: feed}))
}

func (a *App) detectionsPage(w http.ResponseWriter, r *http.Request) {
	feed := tasks.NewDetectionFeed(a.Backend, a.Logger)
	defer feed.Unmount()

	page := a.newPage(r, models.RouteDetections, nil)
	if err := feed.Refresh(r.Context()); err != nil {
		page.Errors = append(page.Errors, msgDetectionsError)
	}

	table := formatter.BuildTable(a.ReportTitle, feed.Records(), formatter.DefaultColumns(a.Location))
	page.Data = detectionsData{Table: table}
	a.render(w, r, "detections", page)
}

func (a *App) report(w http.ResponseWriter, r *http.Request) {
	format, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	feed := tasks.NewDetectionFeed(a.Backend, a.Logger)
	defer feed.Unmount()
	if err := feed.Refresh(r.Context()); err != nil {
		a.flash(w, r, flashError, msgDetectionsError)
		redirect(w, r, models.RouteDetections)
		return
	}

	table := formatter.BuildTable(a.ReportTitle, feed.Records(), formatter.DefaultColumns(a.Location))

	var buf bytes.Buffer
	if err := formatter.Render(&buf, format, table); err != nil {
		a.Logger.Error("failed to render report", "format", format, "error", err)
		http.Error(w, "Failed to export report.", http.StatusInternalServerError)
		return
	}

	name := formatter.Filename(format)
	if format == formatter.FormatPDF && a.ReportName != "" {
		name = a.ReportName
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

func contentType(format string) string {
	switch format {
	case formatter.FormatCSV:
		return "text/csv; charset=utf-8"
	case formatter.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/pdf"
	}
}

func (a *App) settingsPage(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}

	page := a.newPage(r, models.RouteSettings, settingsData{})
	settings, err := a.Settings.Load(r.Context(), user.ID)
	if err != nil {
		page.Errors = append(page.Errors, msgSettingsError)
	} else {
		page.Data = settingsData{OBSServer: settings.OBSServer}
	}
	a.render(w, r, "settings", page)
}

func (a *App) saveSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		a.flash(w, r, flashError, "Invalid form submission.")
		redirect(w, r, models.RouteSettings)
		return
	}

	err := a.Settings.Save(r.Context(), user.ID, r.PostForm.Get("obs_server"))
	switch {
	case errors.Is(err, shared.ErrEmptyAddress):
		a.flash(w, r, flashError, msgInvalidAddress)
	case err != nil:
		a.flash(w, r, flashError, "Failed to update OBS server: "+err.Error())
	default:
		a.flash(w, r, flashInfo, msgSettingsSaved)
	}
	redirect(w, r, models.RouteSettings)
}
