package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"smflab/internal/api"
	"smflab/internal/bot"
	"smflab/internal/config"
	"smflab/internal/database"
	"smflab/internal/events"
	"smflab/internal/google"
	"smflab/internal/health"
	"smflab/internal/holidays"
	"smflab/internal/listing"
	"smflab/internal/metrics"
	"smflab/internal/models"
	"smflab/internal/repository"
	"smflab/internal/service"
	"smflab/shared/access"
	"smflab/shared/audit"
)

func main() {
	cfg, err := config.Load(os.Getenv("SMFLAB_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	repo := repository.New(&logger)
	tests, blocks, err := db.LoadAll(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load schedule")
	}
	if err = repo.Load(tests, blocks); err != nil {
		logger.Fatal().Err(err).Msg("restore schedule")
	}
	repo.SetPersister(db)
	logger.Info().Int("tests", len(tests)).Int("blocks", len(blocks)).Msg("schedule loaded")

	if cfg.Seed.Path != "" {
		err = config.WatchSeed(ctx, cfg.Seed.Path, cfg.SeedWatchInterval(), func(seed *config.Seed) {
			if _, _, err := service.ImportSeed(ctx, repo, seed, &logger); err != nil {
				logger.Error().Err(err).Msg("seed import failed")
			}
		})
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.Seed.Path).Msg("seed unavailable")
		}
	}

	bus := events.NewEventBus(&logger)
	bus.SubscribeAll(db.AuditHandler())

	authz := access.NewService(logger)
	sched := service.NewScheduler(repo, authz, bus, &logger)
	sessions := service.NewStateService(cfg.SessionTTL(), cfg.ClientMarker())

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	var provider holidays.Provider
	calProvider, err := holidays.NewCalProvider(cfg.Holidays.Extra)
	if err != nil {
		logger.Fatal().Err(err).Msg("holiday provider")
	}
	provider = calProvider
	if rdb != nil {
		provider = holidays.NewRedisCache(calProvider, rdb, cfg.HolidayCacheTTL(), &logger)
	}

	healthSvc := health.NewService(&logger)
	healthSvc.AddCheck("db", db.Ping)
	if rdb != nil {
		healthSvc.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go healthSvc.ServeHTTP(ctx, cfg.Monitoring.HealthCheckPort)
	if cfg.Monitoring.GRPCHealthPort != 0 {
		go healthSvc.Watch(ctx, 15*time.Second)
		go healthSvc.ServeGRPC(ctx, cfg.Monitoring.GRPCHealthPort)
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		refreshKPIs := func() {
			k := listing.ComputeKPIs(repo.List(), models.Day(time.Now()))
			metrics.SetKPIs(k.Ongoing, k.Planned, k.UtilizationPercent, k.BookedDays30)
		}
		refreshKPIs()
		bus.SubscribeAll(func(events.Event) error {
			refreshKPIs()
			return nil
		})
		go every(ctx, time.Hour, refreshKPIs)
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	var notifier *bot.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier, err = bot.New(cfg.Telegram.BotToken, cfg.Telegram.Debug, repo, bot.Options{
			ManagerChatIDs:    cfg.Telegram.ManagerChatIDs,
			ReminderHour:      cfg.Telegram.ReminderHour,
			MessagesPerSecond: cfg.ReminderRate(),
		}, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier.Subscribe(bus)
			go notifier.Run(ctx)
			notifier.StartReminders(ctx)
		}
	}

	if cfg.Sheets.Enabled {
		mirror, err := google.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, repo, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets mirror disabled")
		} else {
			mirror.Subscribe(bus)
			go mirror.Run(ctx, google.DefaultDebounce)
		}
	}

	if cfg.Backup.Enabled {
		dir := cfg.Backup.Path
		if dir == "" {
			dir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
		}
		backups := database.NewBackupService(db, dir, cfg.BackupInterval(),
			time.Duration(cfg.Backup.RetentionDays)*24*time.Hour, &logger)
		go backups.Start(ctx)
	}

	if cfg.Audit.Enabled {
		var docs audit.Notifier
		if notifier != nil {
			docs = notifier
		}
		auditSvc := audit.NewService(audit.Config{
			Retention:  cfg.AuditRetention(),
			ExportPath: cfg.Audit.ExportPath,
		}, db, audit.NewExcelizeWriter, docs, db, &logger)
		auditSvc.Start(ctx)
	}

	go every(ctx, time.Minute, func() {
		if n := sessions.Cleanup(); n > 0 {
			logger.Debug().Int("sessions", n).Msg("expired dashboard sessions removed")
		}
	})

	srv := api.NewServer(api.Options{
		Addr:          cfg.HTTP.Addr,
		JWTSecret:     cfg.HTTP.JWTSecret,
		DevRoleHeader: cfg.HTTP.DevRoleHeader,
		ClientMarker:  cfg.ClientMarker(),
		Region:        cfg.Holidays.Region,
		YearsAhead:    cfg.HolidayYearsAhead(),
	}, api.Dependencies{
		Scheduler: sched,
		Repo:      repo,
		Sessions:  sessions,
		Holidays:  provider,
		Audit:     db,
	}, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api shutdown")
		}
	}()

	logger.Info().Str("addr", cfg.HTTP.Addr).Msg("SMF lab scheduler started")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("api server error")
	}
	logger.Info().Msg("SMF lab scheduler stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 3 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
