package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"affidamento/internal"
)

// UnknownSupplierName is stored when a new supplier has no legal name.
const UnknownSupplierName = "Fornitore sconosciuto"

// Registry is the supplier storage the engine works against.
// UpdateSupplier must leave fields that are nil in the patch untouched and
// return ErrSupplierNotFound for an unknown id.
type Registry interface {
	ListSuppliers(ctx context.Context) ([]internal.SupplierRecord, error)
	FindSupplier(ctx context.Context, id string) (*internal.SupplierRecord, error)
	CreateSupplier(ctx context.Context, fields internal.SupplierFields) (string, error)
	UpdateSupplier(ctx context.Context, id string, patch internal.SupplierFields) error
}

type Gateway struct {
	registry Registry
}

func NewGateway(registry Registry) *Gateway {
	return &Gateway{registry: registry}
}

// Upsert returns the id of the supplier behind a match, creating a new
// registry record when the match did not come from the registry.
func (g *Gateway) Upsert(ctx context.Context, match SupplierMatch) (string, error) {
	if match.IsFromDatabase {
		if strings.TrimSpace(match.MatchedID) == "" {
			return "", ErrMissingSupplierID
		}
		return match.MatchedID, nil
	}

	fields := internal.SupplierFields{}
	for _, f := range internal.AllFields {
		if v := match.Extracted.Get(f); present(v) {
			fields.Set(f, v)
		}
	}
	if !present(fields.LegalName) {
		name := UnknownSupplierName
		fields.LegalName = &name
	}

	id, err := g.registry.CreateSupplier(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("%w: create supplier: %v", ErrRegistryUnavailable, err)
	}
	return id, nil
}

// ApplyResolution writes the resolved fields onto an existing supplier.
// Fields not in the map are left as they are; empty values are skipped.
func (g *Gateway) ApplyResolution(ctx context.Context, supplierID string, resolved map[internal.Field]string) error {
	if strings.TrimSpace(supplierID) == "" {
		return ErrMissingSupplierID
	}
	existing, err := g.registry.FindSupplier(ctx, supplierID)
	if err != nil {
		return fmt.Errorf("%w: find supplier %s: %v", ErrRegistryUnavailable, supplierID, err)
	}
	if existing == nil {
		return fmt.Errorf("supplier %s: %w", supplierID, ErrSupplierNotFound)
	}

	patch := internal.SupplierFields{}
	changed := 0
	for _, f := range internal.AllFields {
		v, ok := resolved[f]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		patch.Set(f, &v)
		changed++
	}
	if changed == 0 {
		return nil
	}

	if err := g.registry.UpdateSupplier(ctx, supplierID, patch); err != nil {
		if errors.Is(err, ErrSupplierNotFound) {
			return fmt.Errorf("update supplier %s: %w", supplierID, err)
		}
		return fmt.Errorf("%w: update supplier %s: %v", ErrRegistryUnavailable, supplierID, err)
	}
	return nil
}
