package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dinefind/dinefind/internal/pkg/config"
	"github.com/dinefind/dinefind/internal/server"
	"github.com/dinefind/dinefind/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using process environment")
	}

	if err := logger.Init(zapcore.InfoLevel, zap.String("service", "dinefind-api")); err != nil {
		return err
	}
	zl := logger.Get()
	defer func() { _ = zl.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	otelShutdown, err := server.InitObservability("dinefind-api", ":"+cfg.Server.MetricsPort, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			zl.Error("Observability shutdown failed", zap.Error(err))
		}
	}()

	srv, err := server.New(context.Background(), cfg, zl)
	if err != nil {
		return err
	}
	srv.SetRouter(server.SetupRouter(srv))

	server.StartPprofServer(":"+cfg.Server.PprofPort, zl)

	httpServer := srv.HTTPServer()
	done := make(chan bool, 1)
	go server.GracefulShutdown(httpServer, zl, done, srv.Close)

	zl.Info("Server starting", zap.String("port", cfg.Server.Port))
	if err := httpServer.ListenAndServe(); err != nil {
		zl.Error("Server error", zap.Error(err))
	}

	<-done
	zl.Info("Graceful shutdown complete")
	return nil
}
