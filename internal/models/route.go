package models

import "strings"

// Route names a view in the dashboard shell.
type Route string

const (
	RouteRoot       Route = "/"
	RouteLogin      Route = "/login"
	RouteSignup     Route = "/signup"
	RouteHome       Route = "/homepage"
	RouteDashboard  Route = "/homepage/dashboard"
	RouteAlerts     Route = "/homepage/alerts-summary"
	RouteVideo      Route = "/homepage/live-video-feed"
	RouteMap        Route = "/homepage/interactive-map"
	RouteDetections Route = "/homepage/drone-detection"
	RouteSupport    Route = "/homepage/support"
	RouteSettings   Route = "/homepage/settings"
)

// NavRoutes lists the protected views in menu order.
var NavRoutes = []Route{
	RouteDashboard,
	RouteAlerts,
	RouteVideo,
	RouteMap,
	RouteDetections,
	RouteSupport,
	RouteSettings,
}

var routeTitles = map[Route]string{
	RouteLogin:      "Login",
	RouteSignup:     "Sign Up",
	RouteDashboard:  "Dashboard",
	RouteAlerts:     "Alerts Summary",
	RouteVideo:      "Live Video Feed",
	RouteMap:        "Interactive Map",
	RouteDetections: "Drone Detection",
	RouteSupport:    "Support",
	RouteSettings:   "Settings",
}

// Public reports whether the route renders without a session.
func (r Route) Public() bool {
	return r == RouteLogin || r == RouteSignup
}

// Canonical resolves the index redirects: "/" and "/homepage" both land on the dashboard.
func (r Route) Canonical() Route {
	trimmed := Route(strings.TrimSuffix(string(r), "/"))
	switch trimmed {
	case "", RouteHome:
		return RouteDashboard
	}
	return trimmed
}

// Known reports whether the route names a view.
func (r Route) Known() bool {
	_, ok := routeTitles[r.Canonical()]
	return ok
}

// Title is the heading shown for the route.
func (r Route) Title() string {
	if t, ok := routeTitles[r.Canonical()]; ok {
		return t
	}
	return string(r)
}

func (r Route) String() string { return string(r) }
