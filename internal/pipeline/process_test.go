package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"affidamento/internal"
	"affidamento/internal/config"
	"affidamento/internal/document"
	"affidamento/internal/reconcile"
	"affidamento/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	quote internal.ExtractedQuote
	err   error
	calls int
}

func (f *fakeExtractor) ExtractQuote(ctx context.Context, text string) (internal.ExtractedQuote, error) {
	f.calls++
	return f.quote, f.err
}

func strp(v string) *string { return &v }

func floatp(v float64) *float64 { return &v }

const quoteText = "Preventivo n. 42 per fornitura toner, imponibile 1.200,00 euro"

func newTestService(t *testing.T, extractor FieldExtractor) (*QuoteService, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		UploadDir:    filepath.Join(dir, "uploads"),
		OutputDir:    filepath.Join(dir, "out"),
		TemplatePath: filepath.Join(dir, "template.docx"),
		MaxUploadMB:  1,
		MinTextChars: 10,
	}
	return NewQuoteService(db, cfg, extractor, nil), db
}

func acmeQuote(city string) internal.ExtractedQuote {
	award := internal.AwardSupply
	return internal.ExtractedQuote{
		Supplier: internal.SupplierFields{
			LegalName: strp("ACME SRL"),
			VATNumber: strp("12345678901"),
			City:      strp(city),
		},
		Subject:       strp("Fornitura toner"),
		AwardType:     &award,
		QuoteNumber:   strp("42"),
		Items:         []internal.QuoteItem{{Description: "toner", Quantity: floatp(4), UnitPrice: floatp(300)}},
		TaxableAmount: floatp(1200),
	}
}

func seedAcme(t *testing.T, db *storage.DB) string {
	t.Helper()
	id, err := db.CreateSupplier(context.Background(), internal.SupplierFields{
		LegalName: strp("Acme Srl"),
		VATNumber: strp("12345678901"),
		PEC:       strp("acme@pec.it"),
		City:      strp("Mantova"),
	})
	require.NoError(t, err)
	return id
}

func writeTemplate(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>{F_Ragione} {F_Cap_Comune_Provincia} {Totale_Numero}</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func documentText(t *testing.T, blob []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(content)
		}
	}
	t.Fatal("document.xml missing")
	return ""
}

func TestParseCreatesNewSupplier(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &fakeExtractor{quote: acmeQuote("Brescia")})

	q, err := svc.UploadText(ctx, internal.SourceCLI, nil, "quote.txt", quoteText)
	require.NoError(t, err)
	assert.Equal(t, internal.QuoteUploaded, q.Status)

	res, err := svc.Parse(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.QuoteParsed, res.Quote.Status)
	assert.Nil(t, res.Session)
	require.NotNil(t, res.Quote.SupplierID)

	rec, err := db.FindSupplier(ctx, *res.Quote.SupplierID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ACME SRL", rec.Value(internal.FieldLegalName))
	assert.Equal(t, "Brescia", rec.Value(internal.FieldCity))

	runs, err := db.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}

func TestParseConflictThenResolve(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &fakeExtractor{quote: acmeQuote("Brescia")})
	acmeID := seedAcme(t, db)

	q, err := svc.UploadText(ctx, internal.SourceCLI, nil, "quote.txt", quoteText)
	require.NoError(t, err)

	res, err := svc.Parse(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.QuoteNeedsReview, res.Quote.Status)
	require.NotNil(t, res.Session)
	assert.Equal(t, reconcile.StateAwaitingChoice, res.Session.State)
	assert.Equal(t, acmeID, res.Session.SupplierID)

	err = svc.Generate(ctx, q.ID, document.Form{}, io.Discard)
	assert.ErrorIs(t, err, ErrQuoteState)

	resolved, err := svc.Resolve(ctx, q.ID, map[internal.Field]reconcile.Side{
		internal.FieldCity: reconcile.SideExtraction,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, internal.QuoteParsed, resolved.Quote.Status)
	assert.Equal(t, reconcile.StateResolved, resolved.Session.State)

	rec, err := db.FindSupplier(ctx, acmeID)
	require.NoError(t, err)
	assert.Equal(t, "Brescia", rec.Value(internal.FieldCity))
	assert.Equal(t, "Acme Srl", rec.Value(internal.FieldLegalName))

	supplier, err := DecodeSupplier(resolved.Quote)
	require.NoError(t, err)
	assert.Equal(t, "Brescia", supplier.Value(internal.FieldCity))

	_, err = svc.Resolve(ctx, q.ID, nil, true)
	assert.ErrorIs(t, err, ErrQuoteState)
}

func TestCancelLeavesRegistryUntouched(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &fakeExtractor{quote: acmeQuote("Brescia")})
	acmeID := seedAcme(t, db)

	q, err := svc.UploadText(ctx, internal.SourceCLI, nil, "quote.txt", quoteText)
	require.NoError(t, err)
	_, err = svc.Parse(ctx, q.ID)
	require.NoError(t, err)

	res, err := svc.Cancel(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, reconcile.StateCancelled, res.Session.State)
	assert.Equal(t, internal.QuoteParsed, res.Quote.Status)

	rec, err := db.FindSupplier(ctx, acmeID)
	require.NoError(t, err)
	assert.Equal(t, "Mantova", rec.Value(internal.FieldCity))

	supplier, err := DecodeSupplier(res.Quote)
	require.NoError(t, err)
	assert.Equal(t, "Mantova", supplier.Value(internal.FieldCity))
}

func TestParseExtractionFailureMarksError(t *testing.T) {
	ctx := context.Background()
	extractor := &fakeExtractor{err: fmt.Errorf("%w: connection refused", reconcile.ErrExtractionUnavailable)}
	svc, db := newTestService(t, extractor)

	q, err := svc.UploadText(ctx, internal.SourceCLI, nil, "quote.txt", quoteText)
	require.NoError(t, err)

	_, err = svc.Parse(ctx, q.ID)
	assert.ErrorIs(t, err, reconcile.ErrExtractionUnavailable)

	stored, err := db.MustQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.QuoteError, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "connection refused")

	n, err := db.CountSuppliers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGenerateMarksQuoteGenerated(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &fakeExtractor{quote: acmeQuote("Mantova")})
	seedAcme(t, db)
	writeTemplate(t, svc.cfg.TemplatePath)

	q, err := svc.UploadText(ctx, internal.SourceCLI, nil, "quote.txt", quoteText)
	require.NoError(t, err)
	res, err := svc.Parse(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, internal.QuoteParsed, res.Quote.Status)

	var out bytes.Buffer
	require.NoError(t, svc.Generate(ctx, q.ID, document.Form{}, &out))
	assert.Contains(t, documentText(t, out.Bytes()), "Acme Srl")
	assert.Contains(t, documentText(t, out.Bytes()), "1200.00")

	stored, err := db.MustQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.QuoteGenerated, stored.Status)
}

type readOnlyRegistry struct {
	*storage.DB
}

func (readOnlyRegistry) CreateSupplier(ctx context.Context, fields internal.SupplierFields) (string, error) {
	return "", errors.New("database is locked")
}

func TestParseRegistryWriteFailureStillGenerates(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &fakeExtractor{quote: acmeQuote("Brescia")})
	svc.UseRegistry(readOnlyRegistry{DB: db})
	writeTemplate(t, svc.cfg.TemplatePath)

	q, err := svc.UploadText(ctx, internal.SourceCLI, nil, "quote.txt", quoteText)
	require.NoError(t, err)

	res, err := svc.Parse(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, internal.QuoteParsed, res.Quote.Status)
	assert.Nil(t, res.Quote.SupplierID)
	assert.Contains(t, res.Warning, "database is locked")
	require.NotNil(t, res.Quote.ErrorMessage)

	supplier, err := DecodeSupplier(res.Quote)
	require.NoError(t, err)
	assert.Equal(t, "ACME SRL", supplier.Value(internal.FieldLegalName))

	records, err := db.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	var out bytes.Buffer
	require.NoError(t, svc.Generate(ctx, q.ID, document.Form{}, &out))
	assert.Contains(t, documentText(t, out.Bytes()), "ACME SRL")
	assert.Contains(t, documentText(t, out.Bytes()), "Brescia")
}

func TestUploadRejectsNonPDFAndOversize(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeExtractor{})

	_, err := svc.Upload(ctx, internal.SourceUpload, "a.pdf", []byte("plain text"))
	assert.Error(t, err)

	big := make([]byte, 2*1024*1024)
	_, err = svc.Upload(ctx, internal.SourceUpload, "big.pdf", big)
	assert.ErrorIs(t, err, ErrTooLarge)
}

const quoteMail = "From: Acme <info@acme.it>\r\n" +
	"To: ufficio@comune.it\r\n" +
	"Subject: Preventivo fornitura toner\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Gentili, inviamo il preventivo richiesto.\r\n" +
	"Totale imponibile 1.200,00 euro, IVA 264,00.\r\n"

const otherMail = "From: Collega <collega@comune.it>\r\n" +
	"To: ufficio@comune.it\r\n" +
	"Subject: Riunione\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Ci vediamo domani mattina.\r\n"

func storeMail(t *testing.T, db *storage.DB, messageID, raw string) internal.EmailRow {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mail.eml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	email, err := db.UpsertEmail("imap", messageID, "", "", "2026-10-01T09:00:00Z", "hash-"+messageID, path, storage.EmailFetched)
	require.NoError(t, err)
	return email
}

func TestProcessPendingMails(t *testing.T) {
	ctx := context.Background()
	extractor := &fakeExtractor{quote: acmeQuote("Brescia")}
	svc, db := newTestService(t, extractor)

	quoteEmail := storeMail(t, db, "<1@acme.it>", quoteMail)
	otherEmail := storeMail(t, db, "<2@comune.it>", otherMail)

	emails, quotes, err := svc.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, emails)
	assert.Equal(t, 1, quotes)
	assert.Equal(t, 1, extractor.calls)

	stored, err := db.ListQuotesByEmail(ctx, quoteEmail.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, internal.SourceEmail, stored[0].Source)
	assert.Equal(t, internal.QuoteParsed, stored[0].Status)

	got, err := db.GetEmailByID(quoteEmail.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.EmailProcessed, got.Status)

	got, err = db.GetEmailByID(otherEmail.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.EmailSkipped, got.Status)
}

func TestProcessPendingKeepsGoingAfterParseError(t *testing.T) {
	ctx := context.Background()
	extractor := &fakeExtractor{err: errors.New("model returned invalid JSON")}
	svc, db := newTestService(t, extractor)

	first := storeMail(t, db, "<1@acme.it>", quoteMail)
	second := storeMail(t, db, "<3@acme.it>", quoteMail)

	_, quotes, err := svc.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, quotes)
	assert.Equal(t, 2, extractor.calls)

	for _, email := range []internal.EmailRow{first, second} {
		stored, err := db.ListQuotesByEmail(ctx, email.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, internal.QuoteError, stored[0].Status)

		got, err := db.GetEmailByID(email.ID)
		require.NoError(t, err)
		assert.Equal(t, storage.EmailFailed, got.Status)
	}
}
