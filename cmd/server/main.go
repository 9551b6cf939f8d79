package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"time"

	"chat-api/internal/server"
	"chat-api/internal/storage"
	"chat-api/internal/telemetry"

	"github.com/caarlos0/env/v6"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type config struct {
	LogLevel         zapcore.Level `env:"LOG_LEVEL" envDefault:"info"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`

	Server    server.EnvConfig
	Storage   storage.Config
	Telemetry telemetry.Config
}

func main() {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Fatalf("godotenv.Load(%q): %v", f, err)
		}
	}

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Cannot parse env config: %v", err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Application is starting")

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, sugar, cfg.Telemetry)
	if err != nil {
		sugar.Fatalf("Cannot init tracing: %v", err)
	}

	serverOpts := []server.Option{
		server.WithEnvConfig(cfg.Server),
		server.WithStoreConfig(cfg.Storage),
		server.TimeoutHandler(cfg.Server.HandlerTimeout, `{"detail":"Request timed out"}`),
	}

	var store storage.Store
	if cfg.Storage.URL == "" {
		sugar.Warn("DATABASE_URL is not set, API routes will answer 503")
	} else {
		store, err = storage.Open(ctx, sugar, cfg.Storage, storage.ConnectionTimeout(cfg.DBConnectTimeout))
		if err != nil {
			sugar.Fatalf("Cannot create Store instance: %v", err)
		}
		serverOpts = append(serverOpts, server.RegisterAfterShutdown(func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				sugar.Errorf("Cannot close store: %v", err)
			}
		}))
	}

	srv, err := server.NewServer(sugar, store, serverOpts...)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			sugar.Fatalf("Cannot start http srv: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": srv.Shutdown,
			"tracing":     gfshutdown.Operation(shutdownTracing),
		},
	)

	exitCode := <-wait
	sugar.Infof("Application exited with code: %d", exitCode)
	logger.Sync()
	os.Exit(exitCode)
}
