package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/findhomeng/yard/internal/api"
	"github.com/findhomeng/yard/internal/flow"
	"github.com/findhomeng/yard/internal/genai"
	"github.com/findhomeng/yard/internal/messaging"
	"github.com/findhomeng/yard/internal/scheduler"
	"github.com/findhomeng/yard/internal/store"
	"github.com/findhomeng/yard/internal/twiliowhatsapp"
	"github.com/findhomeng/yard/internal/util"
	"github.com/findhomeng/yard/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Yard state data
	DefaultStateDir = "/var/lib/yard"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "yard.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping Yard with configured modules")
	if err := run(flags); err != nil {
		slog.Error("Yard failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Yard exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	RedisURL        string
	StateDir        string
	OpenAIKey       string
	APIAddr         string
	VerifyToken     string
	Provider        string
	CleanupSchedule string
}

// Flags holds command line flag values
type Flags struct {
	dbDSN           *string
	redisURL        *string
	openaiKey       *string
	apiAddr         *string
	verifyToken     *string
	provider        *string
	cleanupSchedule *string
}

// initializeLogger sets up structured logging. DEBUG=true enables debug level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		StateDir:        util.GetenvDefault("YARD_STATE_DIR", DefaultStateDir),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		VerifyToken:     os.Getenv("VERIFY_TOKEN"),
		Provider:        os.Getenv("MESSAGING_PROVIDER"),
		CleanupSchedule: os.Getenv("CLEANUP_SCHEDULE"),
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.Provider == "" {
		config.Provider = "whatsapp"
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"YARD_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"MESSAGING_PROVIDER", config.Provider)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN for the listing and session store (overrides $DATABASE_URL)"),
		redisURL:        flag.String("redis-url", config.RedisURL, "Redis URL for session and dedup storage (overrides $REDIS_URL)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		verifyToken:     flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $VERIFY_TOKEN)"),
		provider:        flag.String("provider", config.Provider, "messaging provider: whatsapp or twilio (overrides $MESSAGING_PROVIDER)"),
		cleanupSchedule: flag.String("cleanup-schedule", config.CleanupSchedule, "cron schedule for the expiry sweep (overrides $CLEANUP_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"dbDSN_set", *flags.dbDSN != "",
		"redisURL_set", *flags.redisURL != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"provider", *flags.provider)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore opens the SQL store for the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildSender constructs the outbound messaging provider.
func buildSender(flags Flags) (messaging.Sender, error) {
	if *flags.provider == "twilio" {
		return twiliowhatsapp.NewClient()
	}
	return whatsapp.NewClient()
}

func run(flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	// Sessions and dedup move to Redis when configured; listings, history,
	// and appointments stay in SQL either way.
	deps := flow.Dependencies{
		Sessions:     st,
		Dedup:        st,
		Listings:     st,
		Searches:     st,
		Appointments: st,
	}
	if *flags.redisURL != "" {
		rs, err := store.NewRedisStore(*flags.redisURL)
		if err != nil {
			return err
		}
		defer rs.Close()
		deps.Sessions = rs
		deps.Dedup = rs
		slog.Info("Using Redis for sessions and dedup")
	}

	sender, err := buildSender(flags)
	if err != nil {
		return err
	}
	deps.Sender = sender

	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	gaClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("GenAI client not configured, responses fall back to deterministic summaries", "error", err)
	} else {
		deps.GenAI = gaClient
	}

	engine, err := flow.NewEngine(flow.DefaultGraph(), deps)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if purger, ok := st.(store.Purger); ok {
		if err := sched.ScheduleCleanup(*flags.cleanupSchedule, purger); err != nil {
			return err
		}
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	server, err := api.NewServer(engine, apiOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx)
}
