package main

import (
	"context"

	"github.com/desertthunder/dronewatch/internal/server"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/desertthunder/dronewatch/internal/web"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// Serve runs the web dashboard until the context ends.
//
// The server and a session transition logger share one errgroup: either failing stops both.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = int(port)
	}

	if err := r.connect(); err != nil {
		return err
	}

	loc, err := r.config.Location()
	if err != nil {
		return err
	}

	logger := shared.WithLogger(r.logger, "component", "web")
	app, err := web.NewApp(web.Deps{
		Store:       r.store,
		Gateway:     r.gateway,
		Settings:    r.settingsSync(),
		Backend:     r.api,
		Cookies:     web.NewCookieStore(r.config.Server.SessionSecret),
		CSRFKey:     web.NewCSRFKey(r.config.Server.SessionSecret),
		Logger:      logger,
		DefaultFeed: r.config.Video.DefaultFeed,
		ReportTitle: r.config.Report.Title,
		ReportName:  r.config.Report.Filename,
		Location:    loc,
	})
	if err != nil {
		return err
	}

	if err := r.store.Start(ctx); err != nil {
		r.logger.Warn("auth state subscription failed", "error", err)
	}

	srv := server.New(r.config.Addr(), app.Handler())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, srv, logger)
	})
	g.Go(func() error {
		session.NewGuard(r.store).Run(gctx, func(t session.Transition) {
			logger.Info("session changed", "from", t.From, "to", t.To, "user", t.Snapshot.Identity.DisplayName())
		})
		return nil
	})

	url := "http://" + r.config.Addr()
	r.writePlain("Dashboard: %s\n", url)
	if cmd.Bool("open") {
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	return g.Wait()
}
