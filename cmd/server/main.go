package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/keyforge/license-panel/internal/api"
	"github.com/keyforge/license-panel/internal/core/ports"
	"github.com/keyforge/license-panel/internal/core/service"
	"github.com/keyforge/license-panel/internal/infrastructure/config"
	mongoinfra "github.com/keyforge/license-panel/internal/infrastructure/db/mongo"
	redisinfra "github.com/keyforge/license-panel/internal/infrastructure/db/redis"
	"github.com/keyforge/license-panel/internal/infrastructure/mail"
	"github.com/keyforge/license-panel/internal/infrastructure/notify"
	"github.com/keyforge/license-panel/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, db, err := mongoinfra.Connect(ctx, mongoinfra.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	rdb, err := redisinfra.Connect(ctx, redisinfra.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	if err := ensureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("index creation failed")
	}

	var broadcaster ports.Broadcaster = notify.NoopBroadcaster{}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegramBroadcaster(notify.TelegramConfig{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("telegram init failed")
		}
		broadcaster = tg
	}

	e := api.NewRouter(db, rdb, api.Options{
		CookieName:       cfg.CookieName,
		ResetTokenSecret: cfg.ResetTokenSecret,
		Throttle: service.ThrottleConfig{
			MaxAttempts:   cfg.Throttle.MaxAttempts,
			AttemptWindow: cfg.Throttle.AttemptWindow,
			BlockDuration: cfg.Throttle.BlockDuration,
		},
		Bootstrap: service.BootstrapConfig{
			SuperOwnerUsername: cfg.Bootstrap.SuperOwnerUsername,
			SuperOwnerPassword: cfg.Bootstrap.SuperOwnerPassword,
			OwnerUsername:      cfg.Bootstrap.OwnerUsername,
			OwnerPassword:      cfg.Bootstrap.OwnerPassword,
		},
		Connect: service.ConnectConfig{
			APIKey:    cfg.Connect.APIKey,
			XORSecret: cfg.Connect.XORSecret,
		},
		Mailer: mail.New(mail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}),
		Broadcaster: broadcaster,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexed := []interface {
		EnsureIndexes(ctx context.Context) error
	}{
		mongoinfra.NewUserRepository(db),
		mongoinfra.NewSessionRepository(db),
		mongoinfra.NewSecurityRepository(db),
		mongoinfra.NewReferralRepository(db),
		mongoinfra.NewKeyRepository(db),
		mongoinfra.NewActivityRepository(db),
	}
	for _, repo := range indexed {
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
