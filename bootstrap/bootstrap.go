// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/luminote/luminote/adapters/clock"
	apihttp "github.com/luminote/luminote/adapters/http"
	"github.com/luminote/luminote/adapters/idgen"
	"github.com/luminote/luminote/adapters/memory"
	"github.com/luminote/luminote/adapters/metrics"
	"github.com/luminote/luminote/adapters/provider"
	luminoteredis "github.com/luminote/luminote/adapters/redis"
	"github.com/luminote/luminote/adapters/sqlite"
	"github.com/luminote/luminote/app"
	"github.com/luminote/luminote/config"
	"github.com/luminote/luminote/domain/retry"
	"github.com/luminote/luminote/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	Profile *app.ProfileService

	holder     *config.Holder
	cron       *cron.Cron
	redisCache *luminoteredis.Cache
}

// Options configures application startup.
type Options struct {
	// ConfigPath is the YAML config file. When empty or missing the
	// configuration comes from LUMINOTE_* environment variables.
	ConfigPath string

	// Registry receives the prometheus collectors. Defaults to the
	// process-global registerer; tests pass their own so building more
	// than one App does not collide.
	Registry prometheus.Registerer
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	var (
		holder *config.Holder
		cfg    *config.Config
	)

	// A config file gets hot reload; env-only config is static.
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			h, err := config.NewHolder(opts.ConfigPath, zerolog.New(os.Stdout).With().Timestamp().Logger())
			if err != nil {
				return nil, err
			}
			holder = h
			cfg = h.Get()
		}
	}
	if cfg == nil {
		c, err := config.LoadWithFallback(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("initializing luminote")

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	a := &App{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics.NewWithRegistry(registry),
		holder:  holder,
	}

	if holder != nil {
		holder.SetMetrics(a.Metrics)
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
	}

	if err := a.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if err := a.initHTTPServer(); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return a, nil
}

func (a *App) initDatabase() error {
	db, err := sqlite.Open(a.Config.Database.Path)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("path", a.Config.Database.Path).Msg("database initialized")
	return nil
}

func (a *App) initHTTPServer() error {
	cfg := a.Config
	realClock := clock.Real{}
	ids := idgen.UUID{}

	// Cache and rate limiter: Redis when configured, in-process
	// fallbacks otherwise. Both fail open.
	var (
		cache   ports.Cache
		limiter ports.RateLimiter
	)
	if cfg.Redis.Enabled {
		rc := luminoteredis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, a.Logger)
		a.redisCache = rc
		cache = rc
		limiter = rc
		a.Logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache enabled")
	} else {
		cache = memory.NewCache(realClock)
		limiter = memory.NewRateLimiter(realClock)
		a.Logger.Info().Msg("redis disabled, using in-process cache")
	}

	// Stores
	users := sqlite.NewUserStore(a.DB)
	ledgerStore := sqlite.NewLedgerStore(a.DB)
	chats := sqlite.NewChatStore(a.DB)
	notes := sqlite.NewNoteStore(a.DB)
	questions := sqlite.NewQuestionStore(a.DB)
	graphs := sqlite.NewGraphStore(a.DB, ids, realClock)

	// Upstream providers
	chatProvider := provider.NewOpenAI("moonshot", provider.Config{
		BaseURL: cfg.Providers.Chat.BaseURL,
		APIKey:  cfg.Providers.Chat.APIKey,
		Model:   cfg.Providers.Chat.Model,
	}, a.Logger)
	mathProvider := provider.NewDashScope("dashscope", provider.Config{
		BaseURL: cfg.Providers.Math.BaseURL,
		APIKey:  cfg.Providers.Math.APIKey,
		Model:   cfg.Providers.Math.Model,
	}, a.Logger)
	multimodal := provider.NewMultimodal("dashscope-mm", provider.Config{
		BaseURL: cfg.Providers.Multimodal.BaseURL,
		APIKey:  cfg.Providers.Multimodal.APIKey,
		Model:   cfg.Providers.Multimodal.Model,
	}, a.Logger)

	gen := app.NewGenerateService(app.GenerateDeps{
		Ledger:  ledgerStore,
		Clock:   realClock,
		Metrics: a.Metrics,
		Logger:  a.Logger,
	}, retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
	})

	services := apihttp.Services{
		Chat: app.NewChatService(app.ChatDeps{
			Generate: gen,
			Users:    users,
			Chats:    chats,
			Vision:   multimodal,
			Audio:    multimodal,
			Text:     chatProvider,
			Math:     mathProvider,
			IDGen:    ids,
			Clock:    realClock,
			Logger:   a.Logger,
		}),
		Questions: app.NewQuestionService(app.QuestionDeps{
			Generate:  gen,
			Questions: questions,
			Provider:  mathProvider,
			Logger:    a.Logger,
		}),
		Summary: app.NewSummaryService(app.SummaryDeps{
			Generate: gen,
			Notes:    notes,
			Cache:    cache,
			Provider: chatProvider,
			Logger:   a.Logger,
		}),
		Advice: app.NewAdviceService(app.AdviceDeps{
			Generate: gen,
			Users:    users,
			Cache:    cache,
			Provider: chatProvider,
			Clock:    realClock,
			Logger:   a.Logger,
		}),
		Graph: app.NewGraphService(app.GraphDeps{
			Generate: gen,
			Notes:    notes,
			Graphs:   graphs,
			Provider: chatProvider,
			Logger:   a.Logger,
		}),
		Billing: app.NewBillingService(app.BillingDeps{
			Ledger: ledgerStore,
			Cache:  cache,
			Clock:  realClock,
			Logger: a.Logger,
		}),
		Users: app.NewUserService(app.UserDeps{
			Users:  users,
			Cache:  cache,
			Logger: a.Logger,
		}),
	}

	a.Profile = app.NewProfileService(app.ProfileDeps{
		Users:    users,
		Chats:    chats,
		Notes:    notes,
		Provider: chatProvider,
		Clock:    realClock,
		Logger:   a.Logger,
	})

	if cfg.Profile.Enabled {
		if err := a.initProfileJob(cfg.Profile.CronSpec); err != nil {
			return err
		}
	}

	handler := apihttp.NewHandler(services, limiter, apihttp.HandlerConfig{
		StreamWindow: cfg.RateLimit.Window,
		StreamMax:    cfg.RateLimit.MaxRequests,
	}, a.Logger)
	router := apihttp.NewRouter(handler, a.Logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
	return nil
}

// initProfileJob schedules the daily learner-portrait update.
func (a *App) initProfileJob(spec string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		updated, err := a.Profile.RunDaily(ctx)
		if err != nil {
			a.Logger.Error().Err(err).Msg("profile job failed")
			return
		}
		a.Logger.Info().Int("updated", updated).Msg("profile job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule profile job: %w", err)
	}

	a.cron = c
	a.Logger.Info().Str("spec", spec).Msg("profile job scheduled")
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if a.cron != nil {
		a.cron.Start()
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.cron != nil {
		stopCtx := a.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("redis close error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
