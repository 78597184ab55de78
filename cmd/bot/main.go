package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ewmabot/internal/broker"
	"ewmabot/internal/config"
	"ewmabot/internal/engine"
	"ewmabot/internal/journal"
	"ewmabot/internal/marketdata"
	"ewmabot/internal/metrics"
	"ewmabot/internal/session"
	"ewmabot/internal/trader"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.RequireCredentials(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath)
	if err != nil {
		log.Fatalf("decision logger error: %v", err)
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			log.Printf("failed to close decision logger: %v", err)
		}
	}()

	jrnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Fatalf("journal error: %v", err)
	}
	defer func() {
		if err := jrnl.Close(); err != nil {
			log.Printf("failed to close journal: %v", err)
		}
	}()

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
	}

	brokerClient := broker.New(cfg.APIKey, cfg.APISecret, cfg.PaperBaseURL)
	prices := marketdata.New(cfg.APIKey, cfg.APISecret, cfg.Feed)
	sess := session.New()
	traderImpl := trader.New(brokerClient, sess, trader.Options{
		SizingFraction: cfg.SizingFraction,
		MaxNotional:    cfg.MaxNotional,
	})

	engineImpl, err := engine.New(cfg, prices, brokerClient, traderImpl, sess, decisions, jrnl)
	if err != nil {
		log.Fatalf("engine error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Printf("shutdown signal received")
		cancel()
	}()

	log.Printf("starting bot symbol=%s feed=%s run_id=%s", cfg.Symbol, cfg.Feed, traderImpl.RunID())
	if err := engineImpl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("trading loop stopped: %v", err)
		os.Exit(1)
	}

	log.Printf("bot shutdown complete")
}
