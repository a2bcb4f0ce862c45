package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"transvox/internal/api"
	"transvox/internal/config"
	"transvox/internal/daemon"
	"transvox/internal/history"
	"transvox/internal/logging"
	"transvox/internal/scheduler"
)

// version is stamped at build time.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "transvoxd.log"),
		},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	archive, err := history.Open(cfg)
	if err != nil {
		log.Fatalf("open history store: %v", err)
	}

	sched := scheduler.New(cfg, logger, archive)
	server := api.New(cfg, sched, logger, version)

	d, err := daemon.New(cfg, archive, sched, server, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	logger.Info("transvoxd shutting down")
}
