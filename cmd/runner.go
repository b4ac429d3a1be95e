package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/stitchr/internal/auth"
	"github.com/desertthunder/stitchr/internal/cache"
	"github.com/desertthunder/stitchr/internal/repositories"
	"github.com/desertthunder/stitchr/internal/services"
	"github.com/desertthunder/stitchr/internal/shared"
	"github.com/desertthunder/stitchr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	db          *sql.DB
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	openBrowser func(string) error

	creds    cache.CredentialCache
	runs     *repositories.ExportRunRepository
	session  *auth.Session
	api      *services.APIClient
	spotify  *services.SpotifyService
	taskOpts tasks.Options
	library  *tasks.Library
	exporter *tasks.Exporter
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	// DB backs the credential cache and export history. Without it credentials
	// live in memory for the life of the process.
	DB          *sql.DB
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	OpenBrowser func(string) error
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

	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		db:          opts.DB,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		openBrowser: opts.OpenBrowser,
	}
	r.wire()
	return r
}

// wire builds the credential store, session, API client and orchestrators from the
// current config and logger.
func (r *Runner) wire() {
	var runs tasks.RunStore
	if r.db != nil {
		r.creds = repositories.NewCredentialRepository(r.db)
		r.runs = repositories.NewExportRunRepository(r.db)
		runs = r.runs
	} else if r.creds == nil {
		r.creds = cache.NewMemoryCache(nil)
	}

	r.session = nil
	if r.config.Credentials.Spotify.Valid() {
		session, err := auth.NewSession(auth.SessionOpts{
			Credentials: r.config.Credentials.Spotify,
			AccountsURL: r.config.Spotify.AccountsURL,
			Cache:       r.creds,
			HTTPClient:  r.httpClient,
			Logger:      r.logger,
			OpenBrowser: r.openBrowser,
		})
		if err != nil {
			r.logger.Warn("failed to create session", "error", err)
		} else {
			r.session = session
			logger := r.logger
			session.OnAuthChange(func(ok bool) {
				if !ok {
					logger.Warn("signed out, run 'stitchr auth login'")
				}
			})
		}
	}

	clientOpts := services.APIClientOpts{
		BaseURL:    r.config.Spotify.APIURL,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	}
	if r.session != nil {
		clientOpts.Auth = r.session
	}
	if rl := r.config.Spotify.RateLimit; rl > 0 {
		clientOpts.Limiter = rate.NewLimiter(rate.Limit(rl), 1)
	}
	r.api = services.NewAPIClient(clientOpts)
	r.spotify = services.NewSpotifyService(r.api)

	r.taskOpts = tasks.Options{BatchSize: r.config.Spotify.BatchSize, Logger: r.logger}
	r.library = tasks.NewLibrary(r.spotify, r.creds, r.taskOpts)
	r.exporter = tasks.NewExporter(r.spotify, runs, r.taskOpts)
}

// SetLogger replaces the logger and rebuilds the components that hold it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.wire()
}

// Close releases the database handle, if any.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// requireSession fails when no client credentials are configured.
func (r *Runner) requireSession() error {
	if r.session == nil {
		return fmt.Errorf("%w: set client_id and client_secret in %s or %s/%s",
			shared.ErrMissingCredentials, r.configName(), shared.EnvClientID, shared.EnvClientSecret)
	}
	return nil
}

// requireAuth fails unless the session holds credentials.
func (r *Runner) requireAuth() error {
	if err := r.requireSession(); err != nil {
		return err
	}
	if !r.session.IsAuthenticated() {
		return fmt.Errorf("%w: run 'stitchr auth login' first", shared.ErrNotAuthenticated)
	}
	return nil
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, searchCommand, exportCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
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
