package models

// Metric is one label/value line on the dashboard status panel.
type Metric struct {
	Label string
	Value string
}

// Resource is a help center entry on the support page.
type Resource struct {
	Title       string
	Description string
	Action      string
	Link        string
}

// DroneStatus is the placeholder telemetry shown until the drone reports real values.
var DroneStatus = []Metric{
	{"Battery Level", "85%"},
	{"Current Location", "N/A"},
	{"Current Speed", "15 m/s"},
	{"Current Altitude", "120 m"},
}

var SupportResources = []Resource{
	{"Documentation", "Access comprehensive guides and documentation", "View Documentation", "#"},
	{"Contact Support", "Get in touch with our support team", "Send Email", "mailto:support@aetherscan.com"},
	{"Community Forum", "Connect with other users and share experiences", "Join Discussion", "#"},
	{"Report an Issue", "Submit bug reports or feature requests", "Report Issue", "#"},
}
