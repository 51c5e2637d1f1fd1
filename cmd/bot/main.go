package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"voicewatch/internal/config"
	"voicewatch/internal/currency"
	"voicewatch/internal/database"
	"voicewatch/internal/discord"
	"voicewatch/internal/logger"
	"voicewatch/internal/tracker"
	"voicewatch/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogFile)
	log.Info("starting voicewatch",
		"driver", cfg.DatabaseDriver, "timezone", cfg.TimezoneName)

	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)
	if count, err := repo.CountSessions(); err == nil && count > 0 {
		log.Info("found persisted sessions to reconcile", "count", count)
	}
	trk := tracker.New(repo, log, cfg.Timezone, cfg.LeaderboardLimit)

	currencySvc := currency.NewService(log)
	defer currencySvc.Close()
	weatherSvc := weather.NewService(cfg.CWAAPIKey, log)
	defer weatherSvc.Close()

	bot, err := discord.New(cfg, log, trk, currencySvc, weatherSvc)
	if err != nil {
		return err
	}
	if err := bot.Start(); err != nil {
		return err
	}
	defer func() {
		if err := bot.Stop(); err != nil {
			log.Error("failed to close Discord session", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-bot.Ready()
		go trk.RunFlushLoop(ctx)
		go trk.RunResetLoop(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	cancel()

	// Credit in-progress time before exit so nothing is lost across restarts.
	if err := trk.SyncActiveSessions(""); err != nil {
		log.Error("final session flush failed", "error", err)
	}
	return nil
}
