// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/dronewatch/internal/formatter"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/urfave/cli/v3"
)

// setupCommand creates the config file and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml if missing, then initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles sessions with the identity provider
func authCommand(r *Runner) *cli.Command {
	credentials := func() []cli.Flag {
		return []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Account email",
				Sources: cli.EnvVars("DRONEWATCH_EMAIL"),
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password",
				Sources: cli.EnvVars("DRONEWATCH_PASSWORD"),
			},
		}
	}

	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the signed-in session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in with email and password",
				Flags:  credentials(),
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and clear the cached identity",
				Action: r.AuthLogout,
			},
			{
				Name:   "signup",
				Usage:  "Create an account",
				Flags:  credentials(),
				Action: r.AuthSignup,
			},
			{
				Name:  "status",
				Usage: "Show the current session and the cached identity",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
		},
	}
}

// detectionsCommand handles the detection log
func detectionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "detections",
		Aliases: []string{"det"},
		Usage:   "Detection log operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Fetch and print normalized detections",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: table, csv, markdown or json",
						Value:   "table",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.DetectionsList,
			},
			{
				Name:  "log",
				Usage: "Send detections to the backend, one request each",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "object",
						Usage: "Detected object label",
					},
					&cli.FloatFlag{
						Name:  "confidence",
						Usage: "Confidence between 0 and 1",
					},
					&cli.FloatFlag{
						Name:  "lat",
						Usage: "Latitude",
					},
					&cli.FloatFlag{
						Name:  "lon",
						Usage: "Longitude",
					},
					&cli.StringFlag{
						Name:  "file",
						Usage: "JSON file with an array of detections",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent requests for --file",
						Value: 2,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Requests per second for --file",
						Value: 5,
					},
				},
				Action: r.DetectionsLog,
			},
			{
				Name:  "export",
				Usage: "Write the detections report",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report formats: pdf, csv, markdown (repeatable)",
						Value:   []string{formatter.FormatPDF},
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
						Value:   ".",
					},
					&cli.StringFlag{
						Name:  "filename",
						Usage: "File name when writing a single format (default: report.filename)",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Report title (default: report.title)",
					},
				},
				Action: r.DetectionsExport,
			},
			{
				Name:  "history",
				Usage: "List previously exported reports",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of exports to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "Only show exports in this format",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DetectionsHistory,
			},
		},
	}
}

// settingsCommand handles the per-user settings row
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Live video settings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the OBS server and the resulting feed URL",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SettingsShow,
			},
			{
				Name:  "set",
				Usage: "Save the OBS server address",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "address",
					},
				},
				Action: r.SettingsSet,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for the interactive dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive terminal dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "route",
				Usage: "View to open first, e.g. /homepage/drone-detection",
				Value: models.RouteRoot.String(),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI owns the terminal",
				Value: "./tmp/dronewatch-tui.log",
			},
		},
		Action: r.TUI,
	}
}

// serveCommand runs the local web dashboard.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default: server.port)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the dashboard in a browser",
			},
		},
		Action: r.Serve,
	}
}
