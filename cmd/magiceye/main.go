package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/athif-irshad/the-magic-eye/internal/changelog"
	"github.com/athif-irshad/the-magic-eye/internal/command"
	"github.com/athif-irshad/the-magic-eye/internal/inbox"
	"github.com/athif-irshad/the-magic-eye/internal/lockfile"
	"github.com/athif-irshad/the-magic-eye/internal/reddit"
	"github.com/athif-irshad/the-magic-eye/internal/runner"
	"github.com/athif-irshad/the-magic-eye/internal/scheduler"
	"github.com/athif-irshad/the-magic-eye/internal/store"
	"github.com/athif-irshad/the-magic-eye/internal/util"
	"github.com/athif-irshad/the-magic-eye/internal/wikisync"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for magic-eye state data
	DefaultStateDir = "/var/lib/magiceye"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "magiceye.db"
	// DefaultCron polls the platform every minute
	DefaultCron = "* * * * *"
)

// defaultSettings is written to a subreddit's settings wiki page when no
// valid configuration exists yet.
var defaultSettings = json.RawMessage(`{
    "similarity_tolerance": 5,
    "remove_reposts": true,
    "remove_blacklisted": true,
    "report_unmoderated": false
}`)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	if *flags.botUser == "" {
		slog.Error("Bot account name not set; provide MAGIC_EYE_USER or -bot-user")
		os.Exit(1)
	}
	subreddits := util.ParseListEnv("SUBREDDITS")
	if len(subreddits) == 0 {
		slog.Error("No subreddits configured; set SUBREDDITS to a comma-separated list")
		os.Exit(1)
	}

	// One bot per state directory: the cursor store must never race itself.
	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client, err := reddit.NewHTTPClient(
		reddit.WithCredentials(config.ClientID, config.ClientSecret, *flags.botUser, config.BotPassword),
		reddit.WithUserAgent("the-magic-eye (by /u/"+*flags.botUser+")"),
	)
	if err != nil {
		slog.Error("Failed to initialize platform client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncService := wikisync.NewService(client, st, nil)
	dispatcher := command.NewDispatcher(client, st)
	processor := inbox.NewProcessor(client, dispatcher, inbox.Config{
		SelfUser:     *flags.botUser,
		Maintainer:   config.Maintainer,
		AllowInvites: config.AllowInvites,
	})
	run := runner.New(client, changelog.NewConsumer(st), syncService, processor, runner.Config{
		BotUser:    *flags.botUser,
		Subreddits: subreddits,
	})

	// Bootstrap settings for every configured subreddit before polling.
	for _, subreddit := range subreddits {
		if err := syncService.EnsureDefaultSettings(ctx, subreddit, defaultSettings); err != nil {
			slog.Error("Settings bootstrap failed", "error", err, "subreddit", subreddit)
		}
	}

	sched := scheduler.New()
	if err := sched.Schedule("poll-cycle", *flags.cron, func() {
		if err := run.RunCycle(ctx); err != nil {
			slog.Error("Cycle failed", "error", err)
		}
	}); err != nil {
		slog.Error("Invalid cron schedule", "error", err, "cron", *flags.cron)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	slog.Info("magic-eye running", "subreddits", subreddits, "cron", *flags.cron, "bot_user", *flags.botUser)
	<-ctx.Done()
	slog.Info("magic-eye shutting down")
}

// Config holds environment configuration
type Config struct {
	StateDir     string
	DBDSN        string
	BotUser      string
	BotPassword  string
	ClientID     string
	ClientSecret string
	Maintainer   string
	AllowInvites bool
	Cron         string
}

// Flags holds command line flag values
type Flags struct {
	stateDir *string
	dbDSN    *string
	botUser  *string
	cron     *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		StateDir:     os.Getenv("MAGIC_EYE_STATE_DIR"),
		DBDSN:        os.Getenv("DATABASE_URL"),
		BotUser:      os.Getenv("MAGIC_EYE_USER"),
		BotPassword:  os.Getenv("MAGIC_EYE_PASSWORD"),
		ClientID:     os.Getenv("MAGIC_EYE_CLIENT_ID"),
		ClientSecret: os.Getenv("MAGIC_EYE_CLIENT_SECRET"),
		Maintainer:   os.Getenv("MAINTAINER"),
		AllowInvites: util.ParseBoolEnv("ALLOW_MOD_INVITES", false),
		Cron:         os.Getenv("POLL_SCHEDULE"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MAGIC_EYE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DBDSN == "" {
		config.DBDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DBDSN)
	}

	if config.Cron == "" {
		config.Cron = DefaultCron
	}

	slog.Debug("environment variables loaded",
		"MAGIC_EYE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DBDSN != "",
		"MAGIC_EYE_USER", config.BotUser,
		"MAINTAINER", config.Maintainer,
		"ALLOW_MOD_INVITES", config.AllowInvites,
		"POLL_SCHEDULE", config.Cron)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir: flag.String("state-dir", config.StateDir, "state directory for magic-eye data (overrides $MAGIC_EYE_STATE_DIR)"),
		dbDSN:    flag.String("db-dsn", config.DBDSN, "database DSN: file path for SQLite or connection URL for Postgres (overrides $DATABASE_URL)"),
		botUser:  flag.String("bot-user", config.BotUser, "bot account username (overrides $MAGIC_EYE_USER)"),
		cron:     flag.String("cron", config.Cron, "poll schedule in cron syntax (overrides $POLL_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"botUser", *flags.botUser,
		"cron", *flags.cron)

	// Follow the state directory when the DSN was left at its derived default
	if *flags.dbDSN == config.DBDSN && config.DBDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStore constructs the configured storage backend.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}
