package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Karamelishe/TgBOT/internal/bot"
	"github.com/Karamelishe/TgBOT/internal/config"
	"github.com/Karamelishe/TgBOT/internal/database"
	gsheets "github.com/Karamelishe/TgBOT/internal/google"
	"github.com/Karamelishe/TgBOT/internal/metrics"
	"github.com/Karamelishe/TgBOT/internal/reminder"
	"github.com/Karamelishe/TgBOT/internal/repository"
	"github.com/Karamelishe/TgBOT/internal/service"
	"github.com/Karamelishe/TgBOT/internal/session"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BOT_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	states := buildStateRepository(ctx, cfg, &rdb, &logger)
	sessions := session.NewService(states, &logger)

	svc := service.NewBookingService(db, cfg.Timezone, &logger)

	b, err := bot.New(cfg.Telegram.BotToken, db, svc, sessions, cfg.Admins, cfg.Reminders.DefaultHoursBefore, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	schedCfg := reminder.Config{
		PollInterval: cfg.ReminderPollInterval(),
		Timezone:     cfg.Timezone,
		SendRate:     cfg.Reminders.SendRatePerSecond,
		SendBurst:    cfg.Reminders.SendBurst,
	}
	scheduler := reminder.NewScheduler(schedCfg, db, bot.NewNotifier(b), &logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	if cfg.Sheets.Enabled {
		go startSheetsSync(ctx, cfg, svc, &logger)
	}

	logger.Info().Str("timezone", cfg.Timezone).Msg("booking bot started")
	b.Start(ctx)
}

// buildStateRepository wires dialog state storage: Redis when configured,
// with in-memory fallback behind a failover wrapper.
func buildStateRepository(ctx context.Context, cfg *config.Config, rdb **redis.Client, logger *zerolog.Logger) repository.StateRepository {
	memory := repository.NewMemoryStateRepository()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				memory.Sweep()
			}
		}
	}()

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory dialog state")
		return memory
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	*rdb = client

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable at startup, falling back to memory")
	}

	return repository.NewFailoverStateRepository(repository.NewRedisStateRepository(client), memory, logger)
}

func startSheetsSync(ctx context.Context, cfg *config.Config, svc *service.BookingService, logger *zerolog.Logger) {
	sheets, err := gsheets.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, cfg.Timezone, logger)
	if err != nil {
		logger.Error().Err(err).Msg("sheets sync disabled")
		return
	}

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			records, err := svc.BookingsForDate(ctx, "")
			if err != nil {
				logger.Error().Err(err).Msg("sheets sync: list bookings failed")
				continue
			}
			if err := sheets.SyncRoster(ctx, records); err != nil {
				logger.Error().Err(err).Msg("sheets sync failed")
			}
		}
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
