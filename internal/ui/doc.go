// Package ui implements the interactive terminal dashboard using bubbletea's Elm architecture.
//
// The [Model] mounts one route at a time:
//  1. Login and Sign up : credential forms, switched with ctrl+n
//  2. Dashboard, Alerts Summary, Interactive Map, Support : static panels
//  3. Live Video Feed : the stream URL built from the user's OBS server setting
//  4. Drone Detection : a [table.Model] over the detection feed, with refresh and PDF export
//  5. Settings : a text input for the OBS server address
//
// Every navigation goes through the session guard, and every session transition re-evaluates the mounted
// route, so signing out anywhere lands on the login form. Backend calls run as commands whose results carry
// the mount generation of the view that issued them; results for a view that was left are dropped.
//
// Navigation uses tab/shift+tab or the digits 1-7, with contextual help from charmbracelet/bubbles/help.
package ui
