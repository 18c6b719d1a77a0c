package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"movierental/internal/chaos"
	"movierental/internal/config"
	"movierental/internal/server"
	"movierental/internal/store"
	"movierental/internal/store/boltstore"
)

func main() {
	useConfigured := flag.Bool("configured-store", false, "run against the store from the environment instead of a scratch bolt file")
	pause := flag.Duration("pause", 0, "wait between experiments")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, cleanup, err := openStore(ctx, *useConfigured, logger)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	lab := chaos.NewLab(s, logger)
	engine := chaos.NewEngine(logger)
	engine.Register(lab.Experiments()...)

	gameDay := chaos.GameDay{
		Name:      "Rental Consistency Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     *pause,
	}
	if _, err := engine.RunGameDay(ctx, gameDay, os.Stdout); err != nil {
		logger.Error("game day failed", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func openStore(ctx context.Context, configured bool, logger *slog.Logger) (store.Store, func(), error) {
	if configured {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		s, err := server.OpenStore(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}

	dir, err := os.MkdirTemp("", "movierental-chaos-")
	if err != nil {
		return nil, nil, err
	}
	s, err := boltstore.Open(filepath.Join(dir, "chaos.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		os.RemoveAll(dir)
		return nil, nil, err
	}
	return s, func() {
		s.Close()
		os.RemoveAll(dir)
	}, nil
}
