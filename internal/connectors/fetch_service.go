package connectors

import (
	"context"

	"affidamento/internal/logger"
	"affidamento/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
	log       *logger.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
	Known   int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *logger.Logger) *FetchService {
	if log == nil {
		log = logger.Nop()
	}
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       log,
	}
}

// FetchAndStore downloads up to max messages and records the new ones as
// fetched. Messages already seen keep their processing status.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		_, isNew, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if isNew {
			res.Stored++
		} else {
			res.Known++
		}
	}
	s.log.Info("mail fetched", "label", label, "fetched", res.Fetched, "stored", res.Stored, "known", res.Known)
	return res, nil
}
