package listener

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"affidamento/internal"
	"affidamento/internal/config"
	"affidamento/internal/connectors"
	"affidamento/internal/logger"
	"affidamento/internal/pipeline"
	"affidamento/internal/storage"
)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	quotes    *pipeline.QuoteService
	connector connectors.MailConnector
	log       *logger.Logger
}

// NewService builds a listener. connector may be nil, in which case one is
// built from the configured provider on the first cycle.
func NewService(db *storage.DB, cfg config.Config, quotes *pipeline.QuoteService, connector connectors.MailConnector, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{db: db, cfg: cfg, quotes: quotes, connector: connector, log: log}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Quotes    int
	Exported  int
}

// RunCycle fetches new mail, turns quote mails into quotes and, when enabled,
// writes a review sheet for every quote waiting for a decision.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	if s.connector == nil {
		c, err := connectors.New(ctx, s.cfg, s.cfg.MailListenerProvider)
		if err != nil {
			return CycleResult{}, err
		}
		s.connector = c
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, s.connector, s.log)
	fetched, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Fetched: fetched.Fetched, Stored: fetched.Stored}

	res.Processed, res.Quotes, err = s.quotes.ProcessPending(ctx, s.cfg.MailListenerProcessBatch)
	if err != nil {
		return res, err
	}

	if s.cfg.MailListenerAutoExport {
		res.Exported, err = s.exportReviews(ctx)
		if err != nil {
			return res, err
		}
	}

	s.log.Info("listener cycle done",
		"provider", s.cfg.MailListenerProvider,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"processed", res.Processed,
		"quotes", res.Quotes,
		"exported", res.Exported,
	)
	return res, nil
}

func (s *Service) exportReviews(ctx context.Context) (int, error) {
	pending, err := s.db.ListQuotesByStatus(ctx, internal.QuoteNeedsReview, 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, q := range pending {
		outputPath := filepath.Join(s.cfg.OutputDir, "review", q.ID+".xlsx")
		if _, err := os.Stat(outputPath); err == nil {
			continue
		}
		session, err := pipeline.DecodeSession(q)
		if err != nil {
			return exported, err
		}
		if session == nil {
			continue
		}
		if err := pipeline.ExportReviewXLSX(q, session, outputPath); err != nil {
			return exported, fmt.Errorf("export review for quote %s: %w", q.ID, err)
		}
		exported++
	}
	return exported, nil
}
