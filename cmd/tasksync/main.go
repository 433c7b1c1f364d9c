package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ChelseaChanu/taskSync/internal/app"
	"github.com/ChelseaChanu/taskSync/internal/config"
	"github.com/ChelseaChanu/taskSync/internal/email"
	"github.com/ChelseaChanu/taskSync/internal/filehost"
	"github.com/ChelseaChanu/taskSync/internal/live"
	"github.com/ChelseaChanu/taskSync/internal/search"
	"github.com/ChelseaChanu/taskSync/internal/session"
	"github.com/ChelseaChanu/taskSync/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("tasksync stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDev() {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = level
	}
	return zcfg.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	docs, err := store.OpenDocumentStore(ctx, cfg.DBDriver, cfg.DatabaseURL, cfg.SQLitePath, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	defer docs.Close()
	logger.Info("document store ready", zap.String("driver", cfg.DBDriver))

	var hub live.Hub = live.NewMemoryHub()
	deps := app.Deps{Log: logger}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisHub, err := live.NewRedisHub(cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		hub = redisHub
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisStore.Close()
		deps.Sessions = redisStore
		logger.Info("using redis for change events and refresh sessions")
	} else {
		logger.Info("using in-process change events and document store sessions")
	}
	defer hub.Close()

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		deps.Meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer deps.Meili.Close()
	}

	if strings.TrimSpace(cfg.StorageEndpoint) != "" {
		bucket, err := filehost.NewMinIO(ctx, filehost.MinIOConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			Region:    cfg.StorageRegion,
			UseSSL:    cfg.StorageUseSSL,
			PublicURL: cfg.StoragePublicURL,
		})
		if err != nil {
			return err
		}
		deps.Files = filehost.New(bucket, filehost.WithMaxBytes(cfg.MaxUploadBytes), filehost.WithLogger(logger))
	} else {
		logger.Warn("object storage not configured; attachment uploads are disabled")
	}

	deps.Mail = mailSender(cfg, logger)

	service := app.New(cfg, store.NewLive(docs, hub, logger), deps)
	go service.ReindexAll(ctx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("TaskSync API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}

// mailSender prefers SendGrid, then SMTP. Nil means emails are only logged.
func mailSender(cfg config.Config, logger *zap.Logger) email.Sender {
	if cfg.SendGridAPIKey != "" {
		logger.Info("sending email through SendGrid")
		return email.NewSendGrid(cfg.SendGridAPIKey, cfg.SMTPFromName, cfg.SMTPFrom)
	}
	smtp := email.NewSMTP(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if smtp.IsConfigured() {
		logger.Info("sending email through SMTP", zap.String("host", cfg.SMTPHost))
		return smtp
	}
	logger.Warn("email not configured; verification and reset links are logged only")
	return nil
}
