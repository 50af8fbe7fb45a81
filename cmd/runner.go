package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/repositories"
	"github.com/desertthunder/dronewatch/internal/services"
	"github.com/desertthunder/dronewatch/internal/session"
	"github.com/desertthunder/dronewatch/internal/shared"
	"github.com/desertthunder/dronewatch/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Connections are opened on first use so commands like setup work without a reachable provider.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	getenv     func(string) string

	db       *sql.DB
	ownsDB   bool
	provider services.IdentityProvider
	settings services.SettingsTable
	api      tasks.APIClient
	cache    *repositories.IdentityCache
	exports  *repositories.ReportExportRepository
	store    *session.Store
	gateway  *session.Gateway
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Provider, Settings, API and DB replace the clients built from the config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Getenv     func(string) string

	DB       *sql.DB
	Provider services.IdentityProvider
	Settings services.SettingsTable
	API      tasks.APIClient
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		getenv:     opts.Getenv,
		db:         opts.DB,
		provider:   opts.Provider,
		settings:   opts.Settings,
		api:        opts.API,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, detectionsCommand, settingsCommand, tuiCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig is the root command's Before hook. The file replaces the current config when it exists;
// otherwise the defaults (or an injected config) are kept so setup can create it.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.logger.Debug("config loaded", "path", path)
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	r.config.ApplyEnv(r.getenv)
	if err := r.config.Validate(); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// SetLogger replaces the logger. Clients already connected keep the previous one.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// connect opens the database and builds any client that was not injected.
func (r *Runner) connect() error {
	if r.store != nil {
		return nil
	}

	if r.db == nil {
		r.logger.Debug("opening database", "path", r.config.Database.Path)
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
		r.ownsDB = true
	}

	entries := repositories.NewCacheEntryRepository(r.db)
	r.cache = repositories.NewIdentityCache(entries)
	r.exports = repositories.NewReportExportRepository(r.db)

	if r.provider == nil {
		client := services.NewGoTrueClient(r.config.Provider, r.httpClient, repositories.NewTokenCache(entries), r.logger)
		r.provider = client
		if r.settings == nil {
			r.settings = services.NewPostgRESTSettings(r.config.Provider.URL, client)
		}
	}
	if r.settings == nil {
		return fmt.Errorf("%w: settings table requires the provider client", shared.ErrMissingConfig)
	}
	if r.api == nil {
		r.api = services.NewAPIService(r.config.Backend.URL, r.httpClient)
	}

	r.store = session.NewStore(r.provider, r.logger)
	r.gateway = session.NewGateway(r.store, r.provider, r.cache, r.logger)
	return nil
}

// awaitSession starts the session store and waits until the provider reports its initial state.
func (r *Runner) awaitSession(ctx context.Context) (session.Snapshot, error) {
	if err := r.connect(); err != nil {
		return session.Snapshot{}, err
	}
	if err := r.store.Start(ctx); err != nil {
		r.logger.Warn("auth state subscription failed, using last known session", "error", err)
	}

	snaps, stop := r.store.Watch()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return session.Snapshot{}, ctx.Err()
		case snap, ok := <-snaps:
			if !ok {
				return r.store.Snapshot(), nil
			}
			if !snap.Loading {
				return snap, nil
			}
		}
	}
}

// requireIdentity applies the route guard to a protected route and returns the signed-in identity.
func (r *Runner) requireIdentity(ctx context.Context, route models.Route) (*models.Identity, error) {
	snap, err := r.awaitSession(ctx)
	if err != nil {
		return nil, err
	}

	if d := session.Decide(snap, route); d.Outcome == session.Redirect {
		return nil, fmt.Errorf("%w: run 'dronewatch auth login' first", shared.ErrNotAuthenticated)
	}
	return snap.Identity, nil
}

func (r *Runner) settingsSync() *tasks.SettingsSync {
	return tasks.NewSettingsSync(r.settings, r.config.Video.DefaultServer, r.logger)
}

// Close releases the session subscription and the database if the runner opened it.
func (r *Runner) Close() error {
	if r.store != nil {
		r.store.Close()
	}
	if r.ownsDB && r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
