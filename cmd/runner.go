package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/autohaus-heidelberg/website/internal/listing"
	"github.com/autohaus-heidelberg/website/internal/repositories"
	"github.com/autohaus-heidelberg/website/internal/services"
	"github.com/autohaus-heidelberg/website/internal/shared"
	"github.com/autohaus-heidelberg/website/internal/stream"
	"github.com/autohaus-heidelberg/website/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

const tokenProfile = "default"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services are wired from the loaded config in [Runner.Init]. The database is opened on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	input      *bufio.Reader
	store      services.TokenStore
	db         *sql.DB

	client    *services.Client
	auth      *services.AuthService
	events    *services.EventService
	artists   *services.ArtistService
	templates *services.ChecklistTemplateService
	instances *services.ChecklistInstanceService
	settings  *services.SettingsService
	streams   *services.StreamService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	Store      services.TokenStore // overrides auth.store
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      bufio.NewReader(opts.Input),
		store:      opts.Store,
	}
	if r.config != nil {
		if err := r.wire(); err != nil {
			r.logger.Warn("failed to wire services", "error", err)
		}
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, eventsCommand, artistsCommand, checklistCommand, settingsCommand,
		listingCommand, syncCommand, cacheCommand, apiCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Init loads the config named by --config, applies the dotenv overlay and wires services.
//
// A missing config file falls back to the embedded defaults.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config == nil {
		config, err := r.loadConfig()
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	if err := shared.LoadEnv(r.config, cmd.String("env")); err != nil {
		return ctx, err
	}

	if err := r.wire(); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// Close releases the database, if one was opened.
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) loadConfig() (*shared.Config, error) {
	if r.configPath == "" {
		return shared.DefaultConfig(), nil
	}
	if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		return shared.DefaultConfig(), nil
	}
	return shared.LoadConfig(r.configPath)
}

// wire builds the token store, the API client and the resource services from r.config.
func (r *Runner) wire() error {
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: r.config.API.Timeout()}
	}

	if r.store == nil {
		store, err := r.tokenStore()
		if err != nil {
			return err
		}
		r.store = store
	}

	r.client = services.NewClient(services.ClientOpts{
		BaseURL:    r.config.API.BaseURL,
		HTTPClient: r.httpClient,
		Store:      r.store,
		Logger:     r.logger,
		RateLimit:  r.config.API.RateLimit,
		OnAuthFailure: func() {
			r.logger.Warn("session expired, run 'autohaus auth login' again")
		},
	})
	r.auth = services.NewAuthService(r.client, r.store, r.logger)
	r.events = services.NewEventService(r.client)
	r.artists = services.NewArtistService(r.client)
	r.templates = services.NewChecklistTemplateService(r.client)
	r.instances = services.NewChecklistInstanceService(r.client)
	r.settings = services.NewSettingsService(r.client)
	r.streams = services.NewStreamService(r.config.API.BaseURL, r.config.Stream.SyncPath, r.config.Stream.WritePath, r.store)
	return nil
}

func (r *Runner) tokenStore() (services.TokenStore, error) {
	switch r.config.Auth.Store {
	case "memory":
		return services.NewMemoryTokenStore(nil), nil
	case "database":
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		return repositories.NewTokenRepository(db, tokenProfile), nil
	default:
		return services.NewFileTokenStore(shared.ExpandHome(r.config.Auth.TokenPath)), nil
	}
}

// database opens the configured sqlite database and applies pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

// engine builds a task engine. Run history and the event cache are attached when the database opens.
func (r *Runner) engine() *tasks.Engine {
	opts := tasks.EngineOpts{
		Streams: r.streams,
		Events:  r.events,
		Logger:  r.logger,
	}
	if db, err := r.database(); err != nil {
		r.logger.Warn("database unavailable, runs will not be recorded", "error", err)
	} else {
		opts.Runs = repositories.NewStreamRunRepository(db)
		opts.Cache = repositories.NewEventCacheAdapter(repositories.NewEventRepository(db))
	}
	return tasks.NewEngine(opts)
}

// newConsumer builds a stream consumer with the configured grace period and heartbeat event.
func (r *Runner) newConsumer() *stream.Consumer {
	return stream.NewConsumer(stream.Options{
		GracePeriod:    r.config.Stream.GracePeriod(),
		HeartbeatEvent: r.config.Stream.HeartbeatEvent,
		Logger:         r.logger,
	})
}

// handlers logs every known stream event type, including a custom heartbeat name.
func (r *Runner) handlers() stream.Handlers {
	types := append([]string{}, tasks.DefaultEventTypes...)
	if hb := r.config.Stream.HeartbeatEvent; hb != "" {
		types = append(types, hb)
	}
	return tasks.LogOnly(types...)
}

// listingSource returns the configured event source. The API source caches into and falls back on the database.
func (r *Runner) listingSource() listing.Source {
	if r.config.Listing.Source != "api" {
		return listing.NewFileSource(r.config.Listing.EventsPath)
	}

	db, err := r.database()
	if err != nil {
		r.logger.Warn("database unavailable, listing will not be cached", "error", err)
		return listing.NewAPISource(r.events, nil, nil, r.logger)
	}
	cache := repositories.NewEventCacheAdapter(repositories.NewEventRepository(db))
	return listing.NewAPISource(r.events, cache, cache, r.logger)
}

// prompt reads one trimmed line from the runner's input.
func (r *Runner) prompt(label string) (string, error) {
	r.writePlain("%s: ", label)
	line, err := r.input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

// SetLogger swaps the logger, used by the TUI to keep logs off the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	if r.config != nil {
		if err := r.wire(); err != nil {
			r.logger.Warn("failed to rewire services", "error", err)
		}
	}
}

// readBody returns the JSON body given by --data or --file.
func readBody(cmd *cli.Command) (json.RawMessage, error) {
	data, path := cmd.String("data"), cmd.String("file")

	var raw []byte
	switch {
	case data != "" && path != "":
		return nil, fmt.Errorf("%w: cannot specify both --data and --file", shared.ErrInvalidArgument)
	case data != "":
		raw = []byte(data)
	case path != "":
		b, err := shared.VerifyAndReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = b
	default:
		return nil, fmt.Errorf("%w: --data or --file", shared.ErrMissingArgument)
	}

	if err := shared.ValidateJSON(raw); err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// intArg parses a positional numeric id.
func intArg(cmd *cli.Command, name string) (int, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return 0, fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", shared.ErrInvalidArgument, name, v)
	}
	return n, nil
}

// stringArg returns a required positional argument.
func stringArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return v, nil
}
