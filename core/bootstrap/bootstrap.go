package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/moviebot/core/config"
	coredatabase "github.com/m3rciful/moviebot/core/database"
	"github.com/m3rciful/moviebot/core/logger"
)

// Options control the bootstrap pipeline shared between services.
type Options struct {
	Config *coreconfig.Config
	// WithDatabase connects to Postgres and applies migrations. Services without a database
	// leave it unset.
	WithDatabase bool

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(context.Context, coreconfig.DatabaseConfig) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Close releases what Run opened.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, when requested, applies migrations and connects to the
// database.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if !opts.WithDatabase {
		return &Result{}, nil
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, opts.Config.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	return &Result{DB: db}, nil
}
