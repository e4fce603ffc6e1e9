package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-icp-dashboard/internal/cache"
	"github.com/tbourn/go-icp-dashboard/internal/config"
	httpapi "github.com/tbourn/go-icp-dashboard/internal/http"
	"github.com/tbourn/go-icp-dashboard/internal/llm"
	"github.com/tbourn/go-icp-dashboard/internal/observability"
	"github.com/tbourn/go-icp-dashboard/internal/repo"
	"github.com/tbourn/go-icp-dashboard/internal/scheduler"
	"github.com/tbourn/go-icp-dashboard/internal/scrape"
	"github.com/tbourn/go-icp-dashboard/internal/serp"
	"github.com/tbourn/go-icp-dashboard/internal/sysutil"
)

const shutdownGrace = 20 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the maintenance scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			cfg.Port = sysutil.FirstNonEmpty(port, cfg.Port)
			return serve(cmd.Context(), root, cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func serve(parent context.Context, root *rootOptions, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(version, "dev"))
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := root.openDB()
	if err != nil {
		return err
	}
	store, closeCache, err := root.openCache(ctx)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = closeCache() }()

	clients, err := newClients(cfg, store)
	if err != nil {
		return err
	}
	svc := httpapi.NewServices(db, cfg, clients)

	sched, err := newScheduler(cfg, db, svc, store)
	if err != nil {
		return err
	}
	if sched != nil {
		sched.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			sched.Stop(sctx)
		}()
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return log.Logger.WithContext(context.Background()) },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("db", cfg.DBDriver).Bool("redis", cfg.RedisURL != "").Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newClients builds the upstream clients. Prompts come from PROMPTS_PATH
// when set and from the built-in set otherwise.
func newClients(cfg config.Config, store cache.Store) (httpapi.Clients, error) {
	prompts := llm.DefaultPrompts()
	if cfg.OpenAI.PromptsPath != "" {
		p, err := llm.LoadPrompts(cfg.OpenAI.PromptsPath)
		if err != nil {
			return httpapi.Clients{}, fmt.Errorf("prompts: %w", err)
		}
		prompts = p
	}
	if cfg.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is empty; model-backed endpoints will fail")
	}

	return httpapi.Clients{
		Scraper: scrape.New(scrape.Config{
			APIKey:   cfg.Firecrawl.APIKey,
			BaseURL:  cfg.Firecrawl.BaseURL,
			Timeout:  cfg.Firecrawl.Timeout,
			RetryMax: cfg.Firecrawl.RetryMax,
		}),
		LLM: llm.New(llm.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout,
			Prompts: prompts,
		}),
		Ranker: serp.New(serp.Config{
			APIKey:       cfg.Serp.APIKey,
			BaseURL:      cfg.Serp.BaseURL,
			Location:     cfg.Serp.Location,
			HL:           cfg.Serp.HL,
			GL:           cfg.Serp.GL,
			GoogleDomain: cfg.Serp.GoogleDomain,
			Timeout:      cfg.Serp.Timeout,
			RPS:          cfg.Serp.RPS,
			CacheTTL:     cfg.Serp.CacheTTL,
			Cache:        store,
		}),
		Guard: store,
	}, nil
}

// newScheduler returns nil when cron is disabled.
func newScheduler(cfg config.Config, db *gorm.DB, svc *httpapi.Services, store cache.Store) (*scheduler.Scheduler, error) {
	if !cfg.Cron.Enabled {
		return nil, nil
	}
	purge := func(ctx context.Context, now time.Time) (int64, error) {
		return repo.PurgeExpiredIdempotency(ctx, db, now)
	}
	s, err := scheduler.New(scheduler.Options{
		PurgeSpec:    cfg.Cron.PurgeIdempotency,
		RefreshSpec:  cfg.Cron.RefreshBlogs,
		RefreshBatch: cfg.Cron.RefreshBatch,
		Guard:        store,
	}, purge, svc.Performance)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}
