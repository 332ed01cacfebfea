package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"affidamento/internal/config"
	"affidamento/internal/listener"
	"affidamento/internal/llm"
	"affidamento/internal/logger"
	"affidamento/internal/pipeline"
	"affidamento/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logger.New(cfg.LogMode)
	must(err)
	defer log.Sync()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	quotes := pipeline.NewQuoteService(db, cfg, llm.NewClient(cfg, log), log)
	svc := listener.NewService(db, cfg, quotes, nil, log.With("component", "listener"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
