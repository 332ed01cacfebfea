package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"affidamento/internal"
	"affidamento/internal/extract"
	"affidamento/internal/storage"
)

type ProcessResult struct {
	EmailID     int
	Quotes      int
	NeedsReview int
	Failed      int
	Skipped     bool
}

func (s *QuoteService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending processes fetched mails and returns how many mails and
// quotes were handled.
func (s *QuoteService) ProcessPending(ctx context.Context, limit int) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(storage.EmailFetched, limit)
	if err != nil {
		return 0, 0, err
	}

	processedEmails := 0
	quotes := 0
	for _, email := range pending {
		if err := ctx.Err(); err != nil {
			return processedEmails, quotes, err
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, quotes, err
		}
		processedEmails++
		quotes += res.Quotes
	}
	return processedEmails, quotes, nil
}

// ProcessEmail turns every PDF attachment of a quote mail into a parsed
// quote. Mails without PDFs use their body text. Reprocessing a mail replaces
// its previous quotes.
func (s *QuoteService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		_ = s.db.UpdateEmailStatus(email.ID, storage.EmailFailed)
		return ProcessResult{}, fmt.Errorf("read raw mail %s: %w", email.RawRef, err)
	}
	msg, err := extract.ParseQuoteEmail(raw)
	if err != nil {
		_ = s.db.UpdateEmailStatus(email.ID, storage.EmailFailed)
		return ProcessResult{}, err
	}

	detect := DetectQuote(msg.Subject, msg.Text, msg.AttachmentNames())
	if !detect.IsQuote {
		s.log.Info("mail skipped", "email_id", email.ID, "score", detect.Score, "reason", detect.Reason)
		if err := s.db.UpdateEmailStatus(email.ID, storage.EmailSkipped); err != nil {
			return ProcessResult{}, err
		}
		return ProcessResult{EmailID: email.ID, Skipped: true}, nil
	}

	if err := s.db.ClearEmailQuotes(ctx, email.ID); err != nil {
		return ProcessResult{}, err
	}

	emailID := email.ID
	var uploaded []internal.QuoteRow
	for _, att := range msg.PDFAttachments() {
		q, err := s.upload(ctx, internal.SourceEmail, &emailID, att.Filename, att.Content)
		if err != nil {
			s.log.Warn("attachment rejected", "email_id", email.ID, "filename", att.Filename, "error", err)
			continue
		}
		uploaded = append(uploaded, q)
	}
	if len(uploaded) == 0 {
		q, err := s.UploadText(ctx, internal.SourceEmail, &emailID, firstNonEmptyName(msg.Subject), msg.Text)
		if err != nil && !errors.Is(err, extract.ErrEmptyDocument) {
			return ProcessResult{}, err
		}
		if err == nil {
			uploaded = append(uploaded, q)
		}
	}

	res := ProcessResult{EmailID: email.ID}
	for _, q := range uploaded {
		parsed, err := s.Parse(ctx, q.ID)
		if err != nil {
			s.log.Warn("quote parse failed", "email_id", email.ID, "quote_id", q.ID, "error", err)
			res.Failed++
			continue
		}
		res.Quotes++
		if parsed.Quote.Status == internal.QuoteNeedsReview {
			res.NeedsReview++
		}
	}

	status := storage.EmailProcessed
	if res.Quotes == 0 && res.Failed > 0 {
		status = storage.EmailFailed
	}
	if err := s.db.UpdateEmailStatus(email.ID, status); err != nil {
		return res, err
	}
	s.log.Info("mail processed",
		"email_id", email.ID,
		"quotes", res.Quotes,
		"needs_review", res.NeedsReview,
		"failed", res.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func firstNonEmptyName(subject string) string {
	if subject == "" {
		return "mail"
	}
	return subject + ".txt"
}
