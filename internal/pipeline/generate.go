package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"affidamento/internal"
	"affidamento/internal/document"
)

// Generate fills the award letter template for a parsed quote and marks the
// quote GENERATED. Quotes still waiting for a resolution are refused.
func (s *QuoteService) Generate(ctx context.Context, quoteID string, form document.Form, out io.Writer) error {
	q, err := s.db.MustQuote(ctx, quoteID)
	if err != nil {
		return err
	}
	if q.Status != internal.QuoteParsed && q.Status != internal.QuoteGenerated {
		return fmt.Errorf("quote %s is %s: %w", quoteID, q.Status, ErrQuoteState)
	}
	extracted, err := DecodeExtracted(q)
	if err != nil {
		return err
	}
	supplier, err := DecodeSupplier(q)
	if err != nil {
		return err
	}

	tpl, err := os.Open(s.cfg.TemplatePath)
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer tpl.Close()
	info, err := tpl.Stat()
	if err != nil {
		return err
	}

	values := document.Placeholders(extracted, supplier, form)
	if names, err := document.TemplateFields(tpl, info.Size()); err == nil {
		for _, name := range names {
			if _, ok := values[name]; !ok {
				s.log.Warn("template placeholder without value", "quote_id", q.ID, "placeholder", name)
			}
		}
	}
	if err := document.Fill(tpl, info.Size(), values, out); err != nil {
		return err
	}

	q.Status = internal.QuoteGenerated
	if err := s.db.SaveQuote(ctx, q); err != nil {
		return err
	}
	s.log.Info("affidamento generated", "quote_id", q.ID, "supplier_id", q.SupplierID, "total", values["Totale_Numero"])
	return nil
}

// GenerateFile is Generate writing to path.
func (s *QuoteService) GenerateFile(ctx context.Context, quoteID string, form document.Form, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Generate(ctx, quoteID, form, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}
