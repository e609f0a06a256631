package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BTreeMap/ChatReport/internal/api"
	"github.com/BTreeMap/ChatReport/internal/cache"
	"github.com/BTreeMap/ChatReport/internal/console"
	"github.com/BTreeMap/ChatReport/internal/flow"
	"github.com/BTreeMap/ChatReport/internal/lockfile"
	"github.com/BTreeMap/ChatReport/internal/models"
	"github.com/BTreeMap/ChatReport/internal/notify"
	"github.com/BTreeMap/ChatReport/internal/publish"
	"github.com/BTreeMap/ChatReport/internal/report"
	"github.com/BTreeMap/ChatReport/internal/store"
	"github.com/BTreeMap/ChatReport/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ChatReport state data
	DefaultStateDir = "/var/lib/chatreport"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "chatreport.db"
	// DefaultOutboxPollInterval is how often pending care-team alerts are retried
	DefaultOutboxPollInterval = 5 * time.Second
	shutdownTimeout           = 10 * time.Second
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ChatReport", "console", *flags.console)
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr,
		"redis", *flags.redisAddr != "", "nats", *flags.natsURL != "", "care_team_set", config.CareTeamNumber != "")
	if err := run(ctx, config, flags); err != nil {
		if errors.Is(err, console.ErrQuit) {
			slog.Info("ChatReport interview ended early")
			return
		}
		slog.Error("ChatReport failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ChatReport exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	APIAddr          string
	RedisAddr        string
	RedisPassword    string
	RedisSessionTTL  time.Duration
	NATSURL          string
	NATSToken        string
	CareTeamNumber   string
	WeightLossLbs    float64
	MaxReprompts     int
	Console          bool
	RespondentName   string
	AppointmentDate  string
	ClinicianName    string
	OutboxPollPeriod time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	apiAddr   *string
	redisAddr *string
	natsURL   *string
	console   *bool
	name      *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CHATREPORT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("CHATREPORT_STATE_DIR"),
		APIAddr:          os.Getenv("API_ADDR"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisSessionTTL:  time.Duration(util.ParseIntEnv("REDIS_SESSION_TTL_SECONDS", int(cache.DefaultTTL/time.Second))) * time.Second,
		NATSURL:          os.Getenv("NATS_URL"),
		NATSToken:        os.Getenv("NATS_TOKEN"),
		CareTeamNumber:   os.Getenv("CARE_TEAM_NUMBER"),
		WeightLossLbs:    util.ParseFloatEnv("CHATREPORT_WEIGHT_LOSS_THRESHOLD_LBS", report.DefaultThresholds().WeightLossHighLbs),
		MaxReprompts:     util.ParseIntEnv("CHATREPORT_MAX_REPROMPTS", flow.DefaultMaxReprompts),
		Console:          util.ParseBoolEnv("CHATREPORT_CONSOLE", false),
		RespondentName:   os.Getenv("CHATREPORT_RESPONDENT_NAME"),
		AppointmentDate:  os.Getenv("CHATREPORT_APPOINTMENT_DATE"),
		ClinicianName:    os.Getenv("CHATREPORT_CLINICIAN"),
		OutboxPollPeriod: time.Duration(util.ParseIntEnv("OUTBOX_POLL_SECONDS", int(DefaultOutboxPollInterval/time.Second))) * time.Second,
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CHATREPORT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"CHATREPORT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"API_ADDR", config.APIAddr,
		"REDIS_ADDR", config.RedisAddr,
		"NATS_URL_SET", config.NATSURL != "",
		"CARE_TEAM_NUMBER_SET", config.CareTeamNumber != "",
		"CHATREPORT_WEIGHT_LOSS_THRESHOLD_LBS", config.WeightLossLbs,
		"CHATREPORT_MAX_REPROMPTS", config.MaxReprompts)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	return parseFlagSet(flag.CommandLine, config, os.Args[1:])
}

func parseFlagSet(fs *flag.FlagSet, config Config, args []string) Flags {
	flags := Flags{
		stateDir:  fs.String("state-dir", config.StateDir, "state directory for ChatReport data (overrides $CHATREPORT_STATE_DIR)"),
		dbDSN:     fs.String("db-dsn", config.DatabaseURL, "SQLite path or Postgres DSN (overrides $DATABASE_URL)"),
		apiAddr:   fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		redisAddr: fs.String("redis-addr", config.RedisAddr, "Redis address for the session cache (overrides $REDIS_ADDR)"),
		natsURL:   fs.String("nats-url", config.NATSURL, "NATS URL for report events (overrides $NATS_URL)"),
		console:   fs.Bool("console", config.Console, "run one interview on the terminal instead of serving HTTP (overrides $CHATREPORT_CONSOLE)"),
		name:      fs.String("name", config.RespondentName, "respondent first name for console mode"),
	}

	if err := fs.Parse(args); err != nil {
		slog.Warn("flag parsing failed", "error", err)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"redisAddr", *flags.redisAddr,
		"natsURL_set", *flags.natsURL != "",
		"console", *flags.console)

	// Follow the state directory when the DSN is still the derived default.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildThresholds applies the configured weight-loss cutoff to the defaults.
func buildThresholds(config Config) report.Thresholds {
	t := report.DefaultThresholds()
	t.WeightLossHighLbs = config.WeightLossLbs
	return t
}

// buildManagerOptions constructs session manager options
func buildManagerOptions(config Config, pub publish.ReportPublisher) []flow.ManagerOption {
	opts := []flow.ManagerOption{
		flow.WithThresholds(buildThresholds(config)),
		flow.WithSessionMaxReprompts(config.MaxReprompts),
	}
	if pub != nil {
		opts = append(opts, flow.WithFinalizeHook(publish.FinalizeHook(pub)))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}

// buildPublisher connects to NATS when a URL is configured.
func buildPublisher(config Config, flags Flags) (publish.ReportPublisher, error) {
	if *flags.natsURL == "" {
		slog.Debug("No NATS URL configured, report events disabled")
		return publish.NoopPublisher{}, nil
	}
	return publish.NewNATSPublisher(publish.WithURL(*flags.natsURL), publish.WithToken(config.NATSToken))
}

// buildSessionCache connects to Redis when an address is configured.
func buildSessionCache(ctx context.Context, config Config, flags Flags) (cache.SessionCache, func(), error) {
	if *flags.redisAddr == "" {
		return nil, func() {}, nil
	}
	rdb, err := cache.NewRedisClient(ctx, *flags.redisAddr, config.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewSessionCache(rdb, config.RedisSessionTTL), func() { _ = rdb.Close() }, nil
}

// startOutboxSender delivers care-team alerts over Twilio SMS. Without a care
// team number, alerts stay pending in the outbox.
func startOutboxSender(ctx context.Context, config Config, st store.Store) error {
	if config.CareTeamNumber == "" {
		slog.Warn("CARE_TEAM_NUMBER not set, care-team alerts will stay queued")
		return nil
	}
	client, err := notify.NewTwilioClient()
	if err != nil {
		return fmt.Errorf("failed to create Twilio client: %w", err)
	}
	n, err := notify.NewCareTeamNotifier(client, config.CareTeamNumber)
	if err != nil {
		return err
	}
	sender := store.NewOutboxSender(st, notify.OutboxSendFunc(n), config.OutboxPollPeriod)
	if err := sender.RecoverStaleMessages(); err != nil {
		slog.Warn("Failed to recover stale outbox messages", "error", err)
	}
	go sender.Run(ctx)
	return nil
}

// acquireStateLock locks the SQLite state directory. Postgres needs no lock.
func acquireStateLock(flags Flags) (*lockfile.Lock, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil, nil
	}
	return lockfile.Acquire(filepath.Dir(*flags.dbDSN))
}

func run(ctx context.Context, config Config, flags Flags) error {
	lock, err := acquireStateLock(flags)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.Open(*flags.dbDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	sc, closeCache, err := buildSessionCache(ctx, config, flags)
	if err != nil {
		return err
	}
	defer closeCache()

	pub, err := buildPublisher(config, flags)
	if err != nil {
		return err
	}
	defer pub.Close()

	manager := flow.NewSessionManager(flow.IntakeFlow(), flow.NewStoreBasedStateManager(st, sc), st, buildManagerOptions(config, pub)...)

	if err := startOutboxSender(ctx, config, st); err != nil {
		return err
	}

	if *flags.console {
		runner := console.NewRunner(manager, os.Stdin, os.Stdout, console.WithAppointment(models.Appointment{
			Date:      config.AppointmentDate,
			Clinician: config.ClinicianName,
		}))
		_, err := runner.Run(ctx, *flags.name)
		return err
	}

	srv := api.NewServer(manager, buildAPIOptions(flags)...)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
