package connectors

import (
	"context"
	"fmt"
	"strings"

	"affidamento/internal"
	"affidamento/internal/config"
	"affidamento/internal/connectors/gmail"
	"affidamento/internal/connectors/imap"
)

// MailConnector fetches raw messages from a mailbox.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// New builds the connector named by provider ("gmail" or "imap").
func New(ctx context.Context, cfg config.Config, provider string) (MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmail.NewConnector(ctx, cfg)
	case "imap":
		return imap.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
