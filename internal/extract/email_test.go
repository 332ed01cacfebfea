package extract

import (
	"strings"
	"testing"
)

const sampleQuoteMail = "From: Ufficio Vendite <vendite@acme.it>\r\n" +
	"To: acquisti@ente.it\r\n" +
	"Subject: Preventivo n. 45/2026\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Buongiorno,\r\n" +
	"in allegato il preventivo richiesto.\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"preventivo.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0xLjQKZmFrZQo=\r\n" +
	"--XYZ--\r\n"

func TestParseQuoteEmail(t *testing.T) {
	msg, err := ParseQuoteEmail([]byte(sampleQuoteMail))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Subject != "Preventivo n. 45/2026" {
		t.Fatalf("subject=%q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "in allegato il preventivo richiesto.") {
		t.Fatalf("text=%q", msg.Text)
	}
	pdfs := msg.PDFAttachments()
	if len(pdfs) != 1 {
		t.Fatalf("len=%d", len(pdfs))
	}
	if pdfs[0].Filename != "preventivo.pdf" || !IsPDF(pdfs[0].Content) {
		t.Fatalf("attachment=%+v", pdfs[0].Filename)
	}
}

func TestParseQuoteEmailHTMLOnly(t *testing.T) {
	raw := "From: a@b.it\r\n" +
		"Subject: Offerta\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Offerta economica</p><table><tr><td>Voce</td><td>Importo</td></tr><tr><td>Manutenzione</td><td>1.000,00</td></tr></table></body></html>\r\n"

	msg, err := ParseQuoteEmail([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg.Text, "Manutenzione | 1.000,00") {
		t.Fatalf("text=%q", msg.Text)
	}
	if len(msg.Attachments) != 0 {
		t.Fatalf("attachments=%d", len(msg.Attachments))
	}
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><style>p{}</style></head><body><p>Gentili,<br>saluti</p><table><tr><th>Voce</th><th>Importo</th></tr><tr><td>Manutenzione</td><td>1.000,00</td></tr></table></body></html>`
	got := HTMLToText(html)
	want := "Gentili,\nsaluti\nVoce | Importo\nManutenzione | 1.000,00"
	if got != want {
		t.Fatalf("got=%q", got)
	}
}
