package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/cache"
	"github.com/tbourn/go-icp-dashboard/internal/config"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
	"github.com/tbourn/go-icp-dashboard/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version string

type rootOptions struct {
	envFile  string
	logLevel string
	cfg      config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "icpdash",
		Short:         "ICP marketing dashboard backend",
		Version:       sysutil.FirstNonEmpty(version, "dev"),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.load()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing is fine)")
	cmd.PersistentFlags().StringVarP(&opts.logLevel, "loglevel", "l", "", "override LOG_LEVEL: debug, info, warn, error")

	cmd.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newUserCmd(opts))
	return cmd
}

// load reads .env, the environment and sets up logging.
func (o *rootOptions) load() error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			log.Debug().Str("file", o.envFile).Msg("no dotenv file loaded")
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.LogLevel = sysutil.FirstNonEmpty(o.logLevel, cfg.LogLevel)
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)
	o.cfg = cfg
	return nil
}

// openDB connects and migrates the configured database.
func (o *rootOptions) openDB() (*gorm.DB, error) {
	db, err := repo.Open(repo.Options{
		Driver:  o.cfg.DBDriver,
		Path:    o.cfg.DBPath,
		URL:     o.cfg.DatabaseURL,
		Tracing: o.cfg.OTEL.Enabled,
		Silent:  o.cfg.LogLevel != "debug",
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// openCache returns Redis when REDIS_URL is set and an in-process store
// otherwise. The closer is never nil.
func (o *rootOptions) openCache(ctx context.Context) (cache.Store, func() error, error) {
	if o.cfg.RedisURL == "" {
		return cache.NewMemory(), func() error { return nil }, nil
	}
	r, err := cache.NewRedis(ctx, o.cfg.RedisURL, "icpdash:")
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
