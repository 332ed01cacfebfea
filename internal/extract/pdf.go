package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"
)

var (
	ErrEmptyDocument = errors.New("document has no extractable text")
	ErrNotPDF        = errors.New("file is not a PDF")
)

// DefaultMinChars is the shortest text accepted from a document.
const DefaultMinChars = 10

type Document struct {
	Text      string
	PageCount int
}

func IsPDF(content []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(content, "\x00\t\r\n "), []byte("%PDF-"))
}

// PDFText reads the plain text of every page. Documents with fewer than
// minChars characters of text are rejected with ErrEmptyDocument.
func PDFText(content []byte, minChars int) (Document, error) {
	if !IsPDF(content) {
		return Document{}, ErrNotPDF
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return documentFromPages(pages, minChars)
}

func documentFromPages(pages []string, minChars int) (Document, error) {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if cleaned := CleanText(page); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	text := strings.Join(parts, "\n\n")
	if utf8.RuneCountInString(text) < minChars {
		return Document{PageCount: len(pages)}, ErrEmptyDocument
	}
	return Document{Text: text, PageCount: len(pages)}, nil
}

// PlainDocument wraps free text (a mail body) as a one page document.
func PlainDocument(text string, minChars int) (Document, error) {
	return documentFromPages([]string{text}, minChars)
}

// CleanText collapses blanks inside each line and drops empty lines.
func CleanText(text string) string {
	lines := SplitLines(text)
	return strings.Join(lines, "\n")
}

func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
