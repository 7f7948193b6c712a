package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/healthguide/internal/api"
	"github.com/dom/healthguide/internal/chat"
	"github.com/dom/healthguide/internal/config"
	"github.com/dom/healthguide/internal/genai"
	"github.com/dom/healthguide/internal/logger"
	"github.com/dom/healthguide/internal/metrics"
	"github.com/dom/healthguide/internal/notify"
	"github.com/dom/healthguide/internal/otp"
	"github.com/dom/healthguide/internal/repository/postgres"
	"github.com/dom/healthguide/internal/service"
	"github.com/dom/healthguide/internal/storage/minio"
	"github.com/dom/healthguide/internal/token"
	"github.com/dom/healthguide/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:          "healthguide",
	Short:        "HealthGuide API server",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.New(cfg.LogLevel)

		db, err := postgres.NewConnection(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations applied")
		return nil
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
	// Running the binary without a subcommand serves.
	rootCmd.RunE = serveCmd.RunE

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	repos := postgres.NewRepositories(db)

	deps := service.Deps{
		Repos:      repos,
		Challenges: otp.NewGenerator(cfg.OTP.TTL),
		Tokens:     token.NewManager(cfg.JWTSecret, cfg.JWTExpiration),
		Registry: chat.NewRegistry(chat.Options{
			MaxSessions: cfg.Chat.MaxSessions,
			MaxTurns:    cfg.Chat.MaxTurns,
			TTL:         cfg.Chat.SessionTTL,
			OnEvict:     func(string) { metrics.ChatSessionsEvicted.Inc() },
		}),
		Model: genai.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.Model, cfg.Gemini.APIKey),
		Log:   log,
	}

	// Optional dependencies stay nil interfaces when not configured.
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis not reachable, OTP throttle will fail open", "addr", cfg.Redis.Addr, "err", err)
		}
		deps.Throttle = otp.NewThrottle(rdb, otp.ThrottleConfig{
			RequestLimit: cfg.OTP.RequestLimit,
			VerifyLimit:  cfg.OTP.VerifyLimit,
			Window:       cfg.OTP.Window,
		})
	} else {
		log.Warn("REDIS_ADDR not set, OTP throttling disabled")
	}

	if cfg.SMTP.Host != "" {
		sender, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log)
		if err != nil {
			return err
		}
		deps.Sender = sender
	} else {
		log.Warn("SMTP not configured, OTP codes will be written to the log")
		deps.Sender = notify.NewLogSender(log)
	}

	if cfg.Storage.Endpoint != "" {
		photos, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return err
		}
		deps.Photos = photos
	} else {
		log.Warn("MINIO_ENDPOINT not set, report photos will not be stored")
	}

	if cfg.Gemini.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set, AI endpoints will fail")
	}

	services := service.NewServices(deps)

	// Initialize WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      api.NewRouter(services, hub, cfg, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
