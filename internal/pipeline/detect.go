package pipeline

import (
	"regexp"
	"strings"
)

type DetectResult struct {
	IsQuote bool
	Score   float64
	Reason  string
}

var detectKeywords = []string{"preventiv", "offert", "quotazion", "imponibile", "iva", "totale", "importo", "affidament"}

var reEuroAmount = regexp.MustCompile(`(?:€\s*\d|\d[\d.]*,\d{2}\b)`)

// DetectQuote scores a mail on Italian quote vocabulary, euro amounts and
// PDF attachments. Scores at or above 0.45 count as quotes.
func DetectQuote(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}

	amounts := len(reEuroAmount.FindAllStringIndex(text, 3))
	if amounts >= 2 {
		score += 0.3
	} else if amounts == 1 {
		score += 0.15
	}

	for _, name := range attachmentNames {
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			score += 0.3
			break
		}
	}
	if score > 1 {
		score = 1
	}

	isQuote := score >= 0.45
	reason := "rules_negative"
	if isQuote {
		reason = "rules_positive"
	}
	return DetectResult{IsQuote: isQuote, Score: score, Reason: reason}
}
