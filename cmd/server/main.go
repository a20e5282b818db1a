package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/tarun2000/yapper-BE/internal/logging"
	"github.com/tarun2000/yapper-BE/internal/metrics"
	"github.com/tarun2000/yapper-BE/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to an optional YAML config file")
	flag.Parse()

	// Local .env is optional.
	_ = godotenv.Load()

	cfg, err := server.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	active := server.SetConfig(cfg)

	logger := logging.New(active.Log, os.Stdout)
	log.Logger = logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(logger, m)
	go hub.Run()

	if cfgPath != "" {
		go func() {
			err := server.WatchConfigFile(ctx, cfgPath, logger, func(next *server.Config) {
				server.SetConfig(next)
			})
			if err != nil {
				logger.Warn().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	httpServer := server.CreateServer(active.Port, server.SetupRoutes(hub, reg))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("hub shutdown")
	}
}
