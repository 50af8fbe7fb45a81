package main

import (
	"context"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/urfave/cli/v3"
)

// SettingsShow loads the signed-in user's settings, inserting the default row on first use.
func (r *Runner) SettingsShow(ctx context.Context, cmd *cli.Command) error {
	identity, err := r.requireIdentity(ctx, models.RouteSettings)
	if err != nil {
		return err
	}

	settings, err := r.settingsSync().Load(ctx, identity.ID)
	if err != nil {
		return err
	}
	feed := settings.FeedURL(r.config.Video.DefaultFeed)

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			models.Settings
			FeedURL string `json:"feed_url"`
		}{settings, feed}, true)
	}

	r.writePlain("OBS server: %s\n", settings.OBSServer)
	return r.writePlain("Video feed: %s\n", feed)
}

// SettingsSet saves a new OBS server address.
func (r *Runner) SettingsSet(ctx context.Context, cmd *cli.Command) error {
	identity, err := r.requireIdentity(ctx, models.RouteSettings)
	if err != nil {
		return err
	}

	address := cmd.StringArg("address")
	if err := r.settingsSync().Save(ctx, identity.ID, address); err != nil {
		return err
	}

	r.logger.Info("settings saved", "obs_server", address)
	return r.writePlain("✓ Settings updated successfully!\n")
}
