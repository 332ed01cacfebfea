package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"affidamento/internal"
)

var ErrQuoteNotFound = errors.New("quote not found")

const quoteColumns = `id, source, emailId, filename, filePath, status, rawText, pageCount,
  extractedJson, sessionJson, supplierJson, supplierId, errorMessage, createdAt, updatedAt`

func scanQuote(row rowScanner) (internal.QuoteRow, error) {
	var q internal.QuoteRow
	var source, status string
	err := row.Scan(
		&q.ID, &source, &q.EmailID, &q.Filename, &q.FilePath, &status, &q.RawText, &q.PageCount,
		&q.ExtractedJSON, &q.SessionJSON, &q.SupplierJSON, &q.SupplierID, &q.ErrorMessage, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return internal.QuoteRow{}, err
	}
	q.Source = internal.QuoteSource(source)
	q.Status = internal.QuoteStatus(status)
	return q, nil
}

func (d *DB) InsertQuote(ctx context.Context, q internal.QuoteRow) (internal.QuoteRow, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Status == "" {
		q.Status = internal.QuoteUploaded
	}
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO quotes (id, source, emailId, filename, filePath, status, rawText, pageCount)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, q.ID, string(q.Source), q.EmailID, q.Filename, q.FilePath, string(q.Status), q.RawText, q.PageCount)
	if err != nil {
		return internal.QuoteRow{}, err
	}
	return d.MustQuote(ctx, q.ID)
}

func (d *DB) GetQuote(ctx context.Context, id string) (*internal.QuoteRow, error) {
	q, err := scanQuote(d.conn.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (d *DB) MustQuote(ctx context.Context, id string) (internal.QuoteRow, error) {
	q, err := d.GetQuote(ctx, id)
	if err != nil {
		return internal.QuoteRow{}, err
	}
	if q == nil {
		return internal.QuoteRow{}, fmt.Errorf("quote %s: %w", id, ErrQuoteNotFound)
	}
	return *q, nil
}

// SaveQuote stores the mutable part of a quote row.
func (d *DB) SaveQuote(ctx context.Context, q internal.QuoteRow) error {
	result, err := d.conn.ExecContext(ctx, `
UPDATE quotes SET
  status = ?,
  rawText = ?,
  pageCount = ?,
  extractedJson = ?,
  sessionJson = ?,
  supplierJson = ?,
  supplierId = ?,
  errorMessage = ?,
  updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, string(q.Status), q.RawText, q.PageCount, q.ExtractedJSON, q.SessionJSON, q.SupplierJSON, q.SupplierID, q.ErrorMessage, q.ID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("quote %s: %w", q.ID, ErrQuoteNotFound)
	}
	return nil
}

func (d *DB) ListQuotesByStatus(ctx context.Context, status internal.QuoteStatus, limit int) ([]internal.QuoteRow, error) {
	return d.listQuotes(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE status = ? ORDER BY createdAt ASC, rowid ASC LIMIT ?`, string(status), limit)
}

func (d *DB) ListQuotesByEmail(ctx context.Context, emailID int) ([]internal.QuoteRow, error) {
	return d.listQuotes(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE emailId = ? ORDER BY rowid ASC`, emailID)
}

func (d *DB) listQuotes(ctx context.Context, query string, args ...any) ([]internal.QuoteRow, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.QuoteRow
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ClearEmailQuotes drops the quotes produced by an e-mail so it can be
// processed again.
func (d *DB) ClearEmailQuotes(ctx context.Context, emailID int) error {
	_, err := d.conn.ExecContext(ctx, `DELETE FROM quotes WHERE emailId = ?`, emailID)
	return err
}
