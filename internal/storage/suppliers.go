package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"affidamento/internal"
	"affidamento/internal/reconcile"
)

const supplierColumns = `id, legalName, taxCode, vatNumber, street, postalCode, city, province, email, pec, phone, createdAt, updatedAt`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSupplier(row rowScanner) (internal.SupplierRecord, error) {
	var rec internal.SupplierRecord
	var legalName string
	err := row.Scan(
		&rec.ID, &legalName, &rec.TaxCode, &rec.VATNumber, &rec.Street, &rec.PostalCode,
		&rec.City, &rec.Province, &rec.Email, &rec.PEC, &rec.Phone, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return internal.SupplierRecord{}, err
	}
	rec.LegalName = &legalName
	return rec, nil
}

// ListSuppliers returns the registry in insertion order.
func (d *DB) ListSuppliers(ctx context.Context) ([]internal.SupplierRecord, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT `+supplierColumns+` FROM suppliers ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SupplierRecord
	for rows.Next() {
		rec, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (d *DB) FindSupplier(ctx context.Context, id string) (*internal.SupplierRecord, error) {
	rec, err := scanSupplier(d.conn.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindSupplierByContact looks a supplier up by PEC first, then by e-mail.
func (d *DB) FindSupplierByContact(ctx context.Context, pec, email string) (*internal.SupplierRecord, error) {
	pec = strings.ToLower(strings.TrimSpace(pec))
	email = strings.ToLower(strings.TrimSpace(email))
	if pec == "" && email == "" {
		return nil, nil
	}
	rec, err := scanSupplier(d.conn.QueryRowContext(ctx, `
SELECT `+supplierColumns+` FROM suppliers
WHERE (? <> '' AND lower(trim(pec)) = ?) OR (? <> '' AND lower(trim(email)) = ?)
ORDER BY rowid ASC LIMIT 1
`, pec, pec, email, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *DB) CreateSupplier(ctx context.Context, fields internal.SupplierFields) (string, error) {
	if fields.Value(internal.FieldLegalName) == "" {
		return "", errors.New("supplier legal name is required")
	}
	id := uuid.NewString()
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO suppliers (id, legalName, taxCode, vatNumber, street, postalCode, city, province, email, pec, phone)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, id, fields.Value(internal.FieldLegalName), fields.TaxCode, fields.VATNumber, fields.Street, fields.PostalCode,
		fields.City, fields.Province, fields.Email, fields.PEC, fields.Phone)
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateSupplier writes the non-nil fields of patch and leaves the rest.
func (d *DB) UpdateSupplier(ctx context.Context, id string, patch internal.SupplierFields) error {
	result, err := d.conn.ExecContext(ctx, `
UPDATE suppliers SET
  legalName = COALESCE(?, legalName),
  taxCode = COALESCE(?, taxCode),
  vatNumber = COALESCE(?, vatNumber),
  street = COALESCE(?, street),
  postalCode = COALESCE(?, postalCode),
  city = COALESCE(?, city),
  province = COALESCE(?, province),
  email = COALESCE(?, email),
  pec = COALESCE(?, pec),
  phone = COALESCE(?, phone),
  updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, patch.LegalName, patch.TaxCode, patch.VATNumber, patch.Street, patch.PostalCode,
		patch.City, patch.Province, patch.Email, patch.PEC, patch.Phone, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("supplier %s: %w", id, reconcile.ErrSupplierNotFound)
	}
	return nil
}

func (d *DB) CountSuppliers(ctx context.Context) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM suppliers`).Scan(&n)
	return n, err
}
