package reconcile

import (
	"context"
	"fmt"

	"affidamento/internal"
	"affidamento/internal/logger"
)

// Engine reconciles extracted supplier identities against the registry.
// Every call reads the registry fresh; nothing is cached between calls.
type Engine struct {
	registry Registry
	gateway  *Gateway
	log      *logger.Logger
}

func NewEngine(registry Registry, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{registry: registry, gateway: NewGateway(registry), log: log}
}

func (e *Engine) Gateway() *Gateway {
	return e.gateway
}

// MatchSupplier scores the extraction against the registry and merges it
// with the best record. When the registry cannot be read the extraction is
// returned as is together with ErrRegistryUnavailable.
func (e *Engine) MatchSupplier(ctx context.Context, extracted internal.SupplierFields) (SupplierMatch, error) {
	records, err := e.registry.ListSuppliers(ctx)
	if err != nil {
		e.log.Warn("registry read failed, using extraction", "error", err)
		return fallbackMatch(extracted), fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	result := Score(extracted, records)
	if !result.IsFromDatabase {
		e.log.Debug("no registry match", "records", len(records))
		return fallbackMatch(extracted), nil
	}

	outcome := Resolve(extracted, *result.Candidate)
	e.log.Info("registry match",
		"supplier_id", result.Candidate.ID,
		"match_count", result.MatchCount,
		"conflicts", len(outcome.Conflicts),
		"novel", len(outcome.NovelData),
	)
	return SupplierMatch{
		Extracted:      extracted.Clone(),
		Merged:         outcome.Merged,
		MatchedID:      result.Candidate.ID,
		IsFromDatabase: true,
		MatchCount:     result.MatchCount,
		MatchedFields:  result.MatchedFields,
		Outcome:        &outcome,
	}, nil
}

func (e *Engine) UpsertSupplier(ctx context.Context, match SupplierMatch) (string, error) {
	id, err := e.gateway.Upsert(ctx, match)
	if err != nil {
		return "", err
	}
	if !match.IsFromDatabase {
		e.log.Info("supplier created", "supplier_id", id)
	}
	return id, nil
}

// ResolveConflicts applies the given choices to an open session and
// confirms it.
func (e *Engine) ResolveConflicts(ctx context.Context, session *Session, choices map[internal.Field]Side, persistNovel bool) (internal.SupplierFields, error) {
	if session.State == StateIdle {
		if err := session.Open(); err != nil {
			return internal.SupplierFields{}, err
		}
	}
	for _, f := range internal.AllFields {
		side, ok := choices[f]
		if !ok {
			continue
		}
		if _, err := session.Choose(f, side); err != nil {
			return internal.SupplierFields{}, err
		}
	}
	for f := range choices {
		if _, known := internal.ParseField(string(f)); !known {
			session.Ambiguous = append(session.Ambiguous, f)
		}
	}
	if len(session.Ambiguous) > 0 {
		e.log.Warn("choices ignored for fields without conflict", "supplier_id", session.SupplierID, "fields", session.Ambiguous)
	}
	if err := session.SetPersistNovel(persistNovel); err != nil {
		return internal.SupplierFields{}, err
	}

	final, err := session.Confirm(ctx, e.gateway)
	if err != nil {
		return internal.SupplierFields{}, err
	}
	e.log.Info("conflicts resolved", "supplier_id", session.SupplierID, "fields", len(session.ResolvedFields()))
	return final, nil
}

