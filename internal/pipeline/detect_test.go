package pipeline

import "testing"

func TestDetectQuote(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		text        string
		attachments []string
		want        bool
	}{
		{"subject and pdf", "Preventivo n. 12", "In allegato quanto richiesto.", []string{"offerta.PDF"}, true},
		{"amounts in body", "Richiesta", "Imponibile € 1.000,00 - IVA 220,00 - totale 1.220,00", nil, true},
		{"unrelated", "Riunione", "Ci vediamo domani alle 10.", nil, false},
		{"attachment only", "Documenti", "Saluti", []string{"verbale.pdf"}, false},
	}
	for _, tc := range cases {
		got := DetectQuote(tc.subject, tc.text, tc.attachments)
		if got.IsQuote != tc.want {
			t.Fatalf("%s: IsQuote=%v score=%.2f", tc.name, got.IsQuote, got.Score)
		}
	}
}
