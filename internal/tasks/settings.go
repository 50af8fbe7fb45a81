package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/services"
	"github.com/desertthunder/dronewatch/internal/shared"
)

// DefaultOBSServer is written to a user's settings row the first time it is loaded.
const DefaultOBSServer = "98.84.14.247"

// SettingsSync reads and writes the signed-in user's settings row.
type SettingsSync struct {
	table          services.SettingsTable
	defaultAddress string
	logger         *log.Logger
}

// NewSettingsSync creates a sync over table. An empty defaultAddress uses [DefaultOBSServer].
func NewSettingsSync(table services.SettingsTable, defaultAddress string, logger *log.Logger) *SettingsSync {
	if defaultAddress == "" {
		defaultAddress = DefaultOBSServer
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SettingsSync{table: table, defaultAddress: defaultAddress, logger: logger}
}

// Load returns uid's settings, inserting the default row when none exists.
// The inserted default is returned as-is without reading it back.
func (s *SettingsSync) Load(ctx context.Context, uid string) (models.Settings, error) {
	if uid == "" {
		return models.Settings{}, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	rows, err := s.table.Select(ctx, uid)
	if err != nil {
		s.logger.Error("error fetching settings", "uid", uid, "error", err)
		return models.Settings{}, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}

	def := models.DefaultSettings(uid, s.defaultAddress)
	if err := s.table.Insert(ctx, def); err != nil {
		s.logger.Error("error inserting default settings", "uid", uid, "error", err)
		return models.Settings{}, err
	}
	s.logger.Info("default settings inserted", "uid", uid, "obs_server", def.OBSServer)
	return def, nil
}

// FeedURL resolves uid's live video URL without writing anything. A missing row or a failed select
// yields fallback; the select error is still returned for logging.
func (s *SettingsSync) FeedURL(ctx context.Context, uid, fallback string) (string, error) {
	if uid == "" {
		return fallback, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	rows, err := s.table.Select(ctx, uid)
	if err != nil {
		s.logger.Warn("error fetching settings for video feed", "uid", uid, "error", err)
		return fallback, err
	}
	if len(rows) == 0 {
		return fallback, nil
	}
	return rows[0].FeedURL(fallback), nil
}

// Save stores a new OBS server address. Blank addresses are rejected before any request is made.
func (s *SettingsSync) Save(ctx context.Context, uid, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return shared.ErrEmptyAddress
	}
	if uid == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	if err := s.table.Update(ctx, uid, address); err != nil {
		s.logger.Error("error updating OBS server", "uid", uid, "error", err)
		return err
	}
	return nil
}
