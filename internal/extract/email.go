package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

func (a Attachment) IsPDF() bool {
	return strings.HasSuffix(strings.ToLower(a.Filename), ".pdf") ||
		strings.EqualFold(a.ContentType, "application/pdf") ||
		IsPDF(a.Content)
}

type QuoteEmail struct {
	Subject     string
	From        string
	Text        string
	Attachments []Attachment
}

func (m QuoteEmail) AttachmentNames() []string {
	out := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		out = append(out, a.Filename)
	}
	return out
}

func (m QuoteEmail) PDFAttachments() []Attachment {
	out := []Attachment{}
	for _, a := range m.Attachments {
		if a.IsPDF() {
			out = append(out, a)
		}
	}
	return out
}

// ParseQuoteEmail reads a raw RFC 822 message. The HTML part is converted to
// text when the message has no plain text part.
func ParseQuoteEmail(raw []byte) (QuoteEmail, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return QuoteEmail{}, err
	}

	// HTML-only mail: replace enmime's html2text rendering with the table-aware one
	text := env.Text
	if env.HTML != "" && !hasPlainTextPart(env.Root) {
		text = HTMLToText(env.HTML)
	}

	msg := QuoteEmail{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Text:    CleanText(text),
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	for _, part := range parts {
		filename := strings.TrimSpace(part.FileName)
		if filename == "" {
			filename = "attachment"
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:    filename,
			ContentType: part.ContentType,
			Content:     part.Content,
		})
	}
	return msg, nil
}

func hasPlainTextPart(root *enmime.Part) bool {
	if root == nil {
		return false
	}
	part := root.BreadthMatchFirst(func(p *enmime.Part) bool {
		return strings.EqualFold(p.ContentType, "text/plain") && !strings.EqualFold(p.Disposition, "attachment")
	})
	return part != nil
}

// HTMLToText flattens an HTML body. Table rows become "a | b" lines.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style,head").Remove()

	doc.Find("th,td").AppendHtml(" | ")
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p,div,li,h1,h2,h3,h4,tr,table").AppendHtml("\n")

	lines := SplitLines(doc.Text())
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Trim(line, " |")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
