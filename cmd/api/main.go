package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/khony/adzb/internal/app"
	"github.com/khony/adzb/internal/config"
	"github.com/khony/adzb/internal/email"
	"github.com/khony/adzb/internal/export"
	"github.com/khony/adzb/internal/integrations"
	"github.com/khony/adzb/internal/notify"
	"github.com/khony/adzb/internal/obs"
	"github.com/khony/adzb/internal/realtime"
	"github.com/khony/adzb/internal/search"
	"github.com/khony/adzb/internal/session"
	"github.com/khony/adzb/internal/storage"
	"github.com/khony/adzb/internal/store"
	"github.com/khony/adzb/internal/views"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	logger, err := obs.NewLogger(cfg.LogLevel, cfg.LogFormat, "adzb-api")
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	obs.Init()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	dataStore := store.NewPostgresStore(db)

	sessions, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer sessions.Close()
	redisClient := sessions.Client()

	objects, err := storage.New(ctx, storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Buckets:   []string{cfg.AttachmentsBucket, cfg.AvatarsBucket, cfg.ScreenshotsBucket},
	})
	if err != nil {
		logger.Fatal("object storage setup failed", zap.Error(err))
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db), logger)
	defer searchService.Close()
	go searchService.ReindexAllFromPG(ctx)

	var mailer email.Mailer
	if cfg.ResendAPIKey != "" {
		logger.Info("using Resend for outgoing email")
		mailer = email.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom, "")
	} else {
		logger.Info("using SMTP for outgoing email", zap.String("host", cfg.SMTPHost))
		mailer = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
	}

	google := integrations.NewGoogle(integrations.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI(),
	}, logger)
	if !google.IsConfigured() {
		logger.Warn("google oauth is not configured, integrations will be unavailable")
	}

	service := app.New(cfg, app.Deps{
		Store:    dataStore,
		Sessions: sessions,
		Views:    views.NewRedisCache(redisClient, cfg.ViewCacheTTL),
		Feed:     realtime.NewRedisFeed(redisClient, logger),
		Objects:  objects,
		Google:   google,
		Sender:   notify.NewDispatcher(dataStore, objects, cfg.AttachmentsBucket, mailer, cfg.EmailFrom, logger),
		Search:   searchService,
		Exporter: export.NewService(dataStore, nil),
		Logger:   logger,
	})

	httpServer := app.NewHTTPServer(service, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		logger.Info("adzb api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
