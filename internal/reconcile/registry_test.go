package reconcile

import (
	"context"
	"errors"
	"fmt"

	"affidamento/internal"
)

type memRegistry struct {
	records   []internal.SupplierRecord
	nextID    int
	listErr   error
	createErr error
	updateErr error
	creates   int
	updates   int
}

func newMemRegistry(records ...internal.SupplierRecord) *memRegistry {
	r := &memRegistry{}
	for _, rec := range records {
		rec.SupplierFields = rec.SupplierFields.Clone()
		r.records = append(r.records, rec)
	}
	return r
}

func (r *memRegistry) ListSuppliers(ctx context.Context) ([]internal.SupplierRecord, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]internal.SupplierRecord, 0, len(r.records))
	for _, rec := range r.records {
		rec.SupplierFields = rec.SupplierFields.Clone()
		out = append(out, rec)
	}
	return out, nil
}

func (r *memRegistry) FindSupplier(ctx context.Context, id string) (*internal.SupplierRecord, error) {
	for _, rec := range r.records {
		if rec.ID == id {
			rec.SupplierFields = rec.SupplierFields.Clone()
			return &rec, nil
		}
	}
	return nil, nil
}

func (r *memRegistry) CreateSupplier(ctx context.Context, fields internal.SupplierFields) (string, error) {
	if r.createErr != nil {
		return "", r.createErr
	}
	r.nextID++
	r.creates++
	id := fmt.Sprintf("new-%d", r.nextID)
	r.records = append(r.records, internal.SupplierRecord{ID: id, SupplierFields: fields.Clone()})
	return id, nil
}

func (r *memRegistry) UpdateSupplier(ctx context.Context, id string, patch internal.SupplierFields) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	for i := range r.records {
		if r.records[i].ID != id {
			continue
		}
		r.updates++
		for _, f := range internal.AllFields {
			if v := patch.Get(f); v != nil {
				r.records[i].Set(f, v)
			}
		}
		return nil
	}
	return ErrSupplierNotFound
}

func (r *memRegistry) get(id string) internal.SupplierRecord {
	for _, rec := range r.records {
		if rec.ID == id {
			return rec
		}
	}
	return internal.SupplierRecord{}
}

var errBoom = errors.New("boom")

func sp(s string) *string { return &s }

func fields(kv map[internal.Field]string) internal.SupplierFields {
	var out internal.SupplierFields
	for f, v := range kv {
		out.Set(f, sp(v))
	}
	return out
}
