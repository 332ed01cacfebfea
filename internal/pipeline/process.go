package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"affidamento/internal"
	"affidamento/internal/config"
	"affidamento/internal/extract"
	"affidamento/internal/logger"
	"affidamento/internal/reconcile"
	"affidamento/internal/storage"
)

var (
	ErrTooLarge    = errors.New("file exceeds upload limit")
	ErrQuoteState  = errors.New("quote is not in the expected state")
	ErrNoExtracted = errors.New("quote has no extracted data")
)

// FieldExtractor turns quote text into structured fields.
type FieldExtractor interface {
	ExtractQuote(ctx context.Context, text string) (internal.ExtractedQuote, error)
}

type QuoteService struct {
	db        *storage.DB
	cfg       config.Config
	engine    *reconcile.Engine
	extractor FieldExtractor
	log       *logger.Logger
}

func NewQuoteService(db *storage.DB, cfg config.Config, extractor FieldExtractor, log *logger.Logger) *QuoteService {
	if log == nil {
		log = logger.Nop()
	}
	return &QuoteService{
		db:        db,
		cfg:       cfg,
		engine:    reconcile.NewEngine(db, log.With("component", "reconcile")),
		extractor: extractor,
		log:       log,
	}
}

func (s *QuoteService) Engine() *reconcile.Engine {
	return s.engine
}

func (s *QuoteService) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes()
}

// UseRegistry points supplier reconciliation at another registry.
func (s *QuoteService) UseRegistry(registry reconcile.Registry) {
	s.engine = reconcile.NewEngine(registry, s.log.With("component", "reconcile"))
}

// ParseResult is a parsed quote together with the supplier match and, when
// the match needs a human decision, the open resolution session.
type ParseResult struct {
	Quote   internal.QuoteRow        `json:"quote"`
	Match   *reconcile.SupplierMatch `json:"match,omitempty"`
	Session *reconcile.Session       `json:"session,omitempty"`
	Warning string                   `json:"warning,omitempty"`
}

// Upload stores a PDF quote and its extracted text.
func (s *QuoteService) Upload(ctx context.Context, source internal.QuoteSource, filename string, content []byte) (internal.QuoteRow, error) {
	return s.upload(ctx, source, nil, filename, content)
}

func (s *QuoteService) upload(ctx context.Context, source internal.QuoteSource, emailID *int, filename string, content []byte) (internal.QuoteRow, error) {
	if int64(len(content)) > s.cfg.MaxUploadBytes() {
		return internal.QuoteRow{}, fmt.Errorf("%w: %d bytes, max %d MB", ErrTooLarge, len(content), s.cfg.MaxUploadMB)
	}
	if !extract.IsPDF(content) {
		return internal.QuoteRow{}, extract.ErrNotPDF
	}

	doc, err := extract.PDFText(content, s.cfg.MinTextChars)
	if err != nil {
		return internal.QuoteRow{}, fmt.Errorf("extract %s: %w", filename, err)
	}

	id := uuid.NewString()
	path := filepath.Join(s.cfg.UploadDir, id+".pdf")
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return internal.QuoteRow{}, err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return internal.QuoteRow{}, err
	}

	q, err := s.db.InsertQuote(ctx, internal.QuoteRow{
		ID:        id,
		Source:    source,
		EmailID:   emailID,
		Filename:  cleanFilename(filename),
		FilePath:  path,
		Status:    internal.QuoteUploaded,
		RawText:   doc.Text,
		PageCount: doc.PageCount,
	})
	if err != nil {
		return internal.QuoteRow{}, err
	}
	s.log.Info("quote uploaded", "quote_id", q.ID, "source", source, "pages", doc.PageCount, "chars", len(doc.Text))
	return q, nil
}

// UploadText stores a quote whose text comes from a mail body.
func (s *QuoteService) UploadText(ctx context.Context, source internal.QuoteSource, emailID *int, name, text string) (internal.QuoteRow, error) {
	doc, err := extract.PlainDocument(text, s.cfg.MinTextChars)
	if err != nil {
		return internal.QuoteRow{}, fmt.Errorf("extract %s: %w", name, err)
	}
	q, err := s.db.InsertQuote(ctx, internal.QuoteRow{
		Source:    source,
		EmailID:   emailID,
		Filename:  cleanFilename(name),
		FilePath:  "",
		Status:    internal.QuoteUploaded,
		RawText:   doc.Text,
		PageCount: doc.PageCount,
	})
	if err != nil {
		return internal.QuoteRow{}, err
	}
	s.log.Info("quote text stored", "quote_id", q.ID, "source", source, "chars", len(doc.Text))
	return q, nil
}

// Parse extracts the quote fields and reconciles the supplier with the
// registry. Quotes needing a decision end in NEEDS_REVIEW with an open session.
func (s *QuoteService) Parse(ctx context.Context, quoteID string) (ParseResult, error) {
	start := time.Now()
	q, err := s.db.MustQuote(ctx, quoteID)
	if err != nil {
		return ParseResult{}, err
	}
	if strings.TrimSpace(q.RawText) == "" {
		return ParseResult{}, fmt.Errorf("quote %s: %w", quoteID, extract.ErrEmptyDocument)
	}
	if q.Status == internal.QuoteGenerated {
		return ParseResult{}, fmt.Errorf("quote %s already generated: %w", quoteID, ErrQuoteState)
	}

	extracted, err := s.extractor.ExtractQuote(ctx, q.RawText)
	if err != nil {
		s.fail(ctx, &q, err)
		s.recordRun(ctx, q, start, map[string]int{"extracted": 0})
		return ParseResult{Quote: q}, err
	}
	if err := setJSON(&q.ExtractedJSON, extracted); err != nil {
		return ParseResult{}, err
	}
	q.SessionJSON = nil
	q.SupplierID = nil
	q.ErrorMessage = nil

	result := ParseResult{}
	match, err := s.engine.MatchSupplier(ctx, extracted.Supplier)
	result.Match = &match
	switch {
	case errors.Is(err, reconcile.ErrRegistryUnavailable):
		// extraction values only, supplier left unresolved
		result.Warning = err.Error()
		q.ErrorMessage = &result.Warning
		q.Status = internal.QuoteParsed
		if err := setJSON(&q.SupplierJSON, match.Merged); err != nil {
			return ParseResult{}, err
		}
	case err != nil:
		s.fail(ctx, &q, err)
		return ParseResult{Quote: q}, err
	case match.NeedsUserInput():
		session := reconcile.NewSession(match)
		if err := session.Open(); err != nil {
			s.fail(ctx, &q, err)
			return ParseResult{Quote: q}, err
		}
		result.Session = session
		if err := setJSON(&q.SessionJSON, session); err != nil {
			return ParseResult{}, err
		}
		if err := setJSON(&q.SupplierJSON, match.Merged); err != nil {
			return ParseResult{}, err
		}
		q.SupplierID = &match.MatchedID
		q.Status = internal.QuoteNeedsReview
	default:
		if err := setJSON(&q.SupplierJSON, match.Merged); err != nil {
			return ParseResult{}, err
		}
		supplierID, err := s.engine.UpsertSupplier(ctx, match)
		switch {
		case errors.Is(err, reconcile.ErrRegistryUnavailable):
			// the document can still be generated from the extraction
			result.Warning = err.Error()
			q.ErrorMessage = &result.Warning
			s.log.Warn("supplier not saved", "quote_id", q.ID, "error", err)
		case err != nil:
			s.fail(ctx, &q, err)
			return ParseResult{Quote: q}, err
		default:
			q.SupplierID = &supplierID
		}
		q.Status = internal.QuoteParsed
	}

	if err := s.db.SaveQuote(ctx, q); err != nil {
		return ParseResult{}, err
	}
	s.recordRun(ctx, q, start, map[string]int{
		"extracted":    1,
		"matchCount":   match.MatchCount,
		"conflicts":    len(match.Conflicts()),
		"novel":        len(match.NovelData()),
		"needsReview":  boolInt(q.Status == internal.QuoteNeedsReview),
		"fromRegistry": boolInt(match.IsFromDatabase),
	})
	s.log.Info("quote parsed", "quote_id", q.ID, "status", q.Status, "match_count", match.MatchCount)

	result.Quote, err = s.db.MustQuote(ctx, q.ID)
	return result, err
}

// Resolve applies the operator choices to the open session and confirms it.
func (s *QuoteService) Resolve(ctx context.Context, quoteID string, choices map[internal.Field]reconcile.Side, persistNovel bool) (ParseResult, error) {
	q, session, err := s.openSession(ctx, quoteID)
	if err != nil {
		return ParseResult{}, err
	}

	final, err := s.engine.ResolveConflicts(ctx, session, choices, persistNovel)
	if err != nil {
		return ParseResult{}, err
	}
	return s.closeSession(ctx, q, session, final)
}

// Cancel closes the open session without touching the registry; the quote
// keeps the provisional merge.
func (s *QuoteService) Cancel(ctx context.Context, quoteID string) (ParseResult, error) {
	q, session, err := s.openSession(ctx, quoteID)
	if err != nil {
		return ParseResult{}, err
	}
	final, err := session.Cancel()
	if err != nil {
		return ParseResult{}, err
	}
	s.log.Info("resolution cancelled", "quote_id", q.ID, "supplier_id", session.SupplierID)
	return s.closeSession(ctx, q, session, final)
}

func (s *QuoteService) openSession(ctx context.Context, quoteID string) (internal.QuoteRow, *reconcile.Session, error) {
	q, err := s.db.MustQuote(ctx, quoteID)
	if err != nil {
		return internal.QuoteRow{}, nil, err
	}
	if q.Status != internal.QuoteNeedsReview || q.SessionJSON == nil {
		return internal.QuoteRow{}, nil, fmt.Errorf("quote %s is %s: %w", quoteID, q.Status, ErrQuoteState)
	}
	session, err := DecodeSession(q)
	if err != nil {
		return internal.QuoteRow{}, nil, err
	}
	return q, session, nil
}

func (s *QuoteService) closeSession(ctx context.Context, q internal.QuoteRow, session *reconcile.Session, final internal.SupplierFields) (ParseResult, error) {
	if err := setJSON(&q.SessionJSON, session); err != nil {
		return ParseResult{}, err
	}
	if err := setJSON(&q.SupplierJSON, final); err != nil {
		return ParseResult{}, err
	}
	supplierID := session.SupplierID
	q.SupplierID = &supplierID
	q.Status = internal.QuoteParsed
	q.ErrorMessage = nil
	if err := s.db.SaveQuote(ctx, q); err != nil {
		return ParseResult{}, err
	}

	saved, err := s.db.MustQuote(ctx, q.ID)
	if err != nil {
		return ParseResult{}, err
	}
	return ParseResult{Quote: saved, Session: session}, nil
}

func (s *QuoteService) Quote(ctx context.Context, quoteID string) (internal.QuoteRow, error) {
	return s.db.MustQuote(ctx, quoteID)
}

func (s *QuoteService) fail(ctx context.Context, q *internal.QuoteRow, cause error) {
	msg := cause.Error()
	q.Status = internal.QuoteError
	q.ErrorMessage = &msg
	if err := s.db.SaveQuote(ctx, *q); err != nil {
		s.log.Error("failed to record quote error", "quote_id", q.ID, "error", err)
	}
	s.log.Warn("quote failed", "quote_id", q.ID, "error", cause)
}

func (s *QuoteService) recordRun(ctx context.Context, q internal.QuoteRow, start time.Time, counts map[string]int) {
	quoteID := q.ID
	run := storage.Run{
		TraceID: traceID(),
		EmailID: q.EmailID,
		QuoteID: &quoteID,
		Timings: map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		Counts:  counts,
	}
	if err := s.db.InsertRun(ctx, run); err != nil {
		s.log.Warn("run bookkeeping failed", "quote_id", q.ID, "error", err)
	}
}

// DecodeExtracted reads the extracted quote stored on a row.
func DecodeExtracted(q internal.QuoteRow) (internal.ExtractedQuote, error) {
	var out internal.ExtractedQuote
	if q.ExtractedJSON == nil {
		return out, ErrNoExtracted
	}
	err := json.Unmarshal([]byte(*q.ExtractedJSON), &out)
	return out, err
}

func DecodeSession(q internal.QuoteRow) (*reconcile.Session, error) {
	if q.SessionJSON == nil {
		return nil, nil
	}
	var session reconcile.Session
	if err := json.Unmarshal([]byte(*q.SessionJSON), &session); err != nil {
		return nil, fmt.Errorf("decode session of quote %s: %w", q.ID, err)
	}
	if session.Choices == nil {
		session.Choices = map[internal.Field]reconcile.Side{}
	}
	return &session, nil
}

func DecodeSupplier(q internal.QuoteRow) (internal.SupplierFields, error) {
	var out internal.SupplierFields
	if q.SupplierJSON == nil {
		return out, nil
	}
	err := json.Unmarshal([]byte(*q.SupplierJSON), &out)
	return out, err
}

func setJSON(dst **string, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s := string(blob)
	*dst = &s
	return nil
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "preventivo"
	}
	return name
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
