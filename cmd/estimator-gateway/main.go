package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/xizhibei/go-estimator-gateway/config"
	"github.com/xizhibei/go-estimator-gateway/telemetry"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	log := logger.Sugar()

	tel, err := telemetry.New(context.Background(), telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    cfg.AppName,
		ServiceVersion: version,
		Environment:    cfg.AppEnv,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Debug:          cfg.OTelDebug,
	})
	if err != nil {
		log.Warnf("Failed to initialize telemetry, continuing without it: %v", err)
		tel, _ = telemetry.NewNoop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server, err := newServer(cfg, tel, registry)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}
	log.Infof("Forwarding predictions to %s", cfg.Upstream.BaseURL)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(cfg.ListenAddr())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, shutting down...", sig)
	case err := <-errCh:
		if err != nil {
			log.Errorf("Server stopped: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Shutdown: %v", err)
	}
	if err := tel.Shutdown(ctx); err != nil {
		log.Errorf("Telemetry shutdown: %v", err)
	}
}
