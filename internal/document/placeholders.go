package document

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"affidamento/internal"
	"affidamento/internal/util"
)

// ProposalDateThreshold is the amount above which the RUP proposal carries its date.
const ProposalDateThreshold = 5000.0

// Form holds what the operator fills in before generating the award letter.
type Form struct {
	SendMethod       string   `json:"metodoInvio"`
	Letter           string   `json:"lettera"`
	ServiceOrSupply  string   `json:"tipoServizioFornitura"`
	Subject          string   `json:"oggetto"`
	CUP              string   `json:"cup"`
	WorkCode         string   `json:"codiceLavoro"`
	BudgetChapter    string   `json:"capitoloBilancio"`
	CPV              string   `json:"cpv"`
	Description      string   `json:"descrizione"`
	Conditions       string   `json:"condizioni"`
	Timing           string   `json:"tempistiche"`
	TechnicalRules   string   `json:"prescrizioniTecniche"`
	Guarantees       string   `json:"garanzie"`
	Total            *float64 `json:"totale"`
	DirectorName     string   `json:"direttoreNome"`
	DirectorRole     string   `json:"direttoreRuolo"`
	RUPName          string   `json:"rupNome"`
	RUPTitle         string   `json:"rupTitolo"`
	RUPProposalDate  string   `json:"dataPropostaRup"`
	ContactName      string   `json:"referenteNome"`
	ContactExtension string   `json:"referenteInterno"`
	ContactEmail     string   `json:"referenteMail"`
}

// Placeholders builds the template values for an award letter from the
// confirmed supplier, the extracted quote and the operator form.
func Placeholders(quote internal.ExtractedQuote, supplier internal.SupplierFields, form Form) map[string]string {
	letter := strings.TrimSpace(form.Letter)
	if letter == "" {
		letter = LetterFor(quote.AwardType)
	}
	total := TotalAmount(quote, form.Total)

	subject := strings.TrimSpace(form.Subject)
	if subject == "" {
		subject = util.Deref(quote.Subject)
	}
	description := unescapeNewlines(form.Description)
	if strings.TrimSpace(description) == "" {
		description = DescribeItems(quote, letter, form.ServiceOrSupply)
	}

	values := map[string]string{
		"F_Ragione":              supplier.Value(internal.FieldLegalName),
		"F_CF_IVA":               util.FirstNonEmpty(supplier.Value(internal.FieldVATNumber), supplier.Value(internal.FieldTaxCode)),
		"F_Indirizzo":            supplier.Value(internal.FieldStreet),
		"F_Cap_Comune_Provincia": PostalLine(supplier),
		"F_Mail":                 supplier.Value(internal.FieldEmail),
		"F_Pec":                  supplier.Value(internal.FieldPEC),
		"Metodo_Invio":           util.FirstNonEmpty(strings.TrimSpace(form.SendMethod), "PEC"),
		"Lettera":                letter,
		"Oggetto":                subject,
		"Capitolo_Bilancio":      strings.TrimSpace(form.BudgetChapter),
		"CPV":                    strings.TrimSpace(form.CPV),
		"CUP":                    strings.TrimSpace(form.CUP),
		"Codice_Lavoro":          strings.TrimSpace(form.WorkCode),
		"Riferimento":            Reference(quote.QuoteNumber),
		"P_Numero":               strings.TrimSpace(util.Deref(quote.ProtocolNumber)),
		"P_Data":                 strings.TrimSpace(util.Deref(quote.ProtocolDate)),
		"Descrizione":            description,
		"Condizioni":             unescapeNewlines(form.Conditions),
		"Tempistiche":            unescapeNewlines(form.Timing),
		"Prescrizioni_Tecniche":  unescapeNewlines(form.TechnicalRules),
		"Garanzie":               unescapeNewlines(form.Guarantees),
		"Totale_Numero":          fmt.Sprintf("%.2f", total),
		"Totale_Lettere":         util.AmountInWords(total),
		"Proposta":               Proposal(form, total),
		"Direttore_Nome":         strings.TrimSpace(form.DirectorName),
		"Direttore_Ruolo":        strings.TrimSpace(form.DirectorRole),
		"R_Nome":                 strings.TrimSpace(form.ContactName),
		"R_Interno":              strings.TrimSpace(form.ContactExtension),
		"R_Mail":                 strings.TrimSpace(form.ContactEmail),
	}
	return values
}

// LetterFor maps the award type to the article letter: works are "a)",
// services and supplies "b)".
func LetterFor(t *internal.AwardType) string {
	if t != nil && *t == internal.AwardWorks {
		return "a)"
	}
	return "b)"
}

func Reference(quoteNumber *string) string {
	if n := strings.TrimSpace(util.Deref(quoteNumber)); n != "" {
		return "al preventivo n. " + n
	}
	return "al preventivo"
}

func PostalLine(s internal.SupplierFields) string {
	postal, city := s.Value(internal.FieldPostalCode), s.Value(internal.FieldCity)
	if postal == "" || city == "" {
		return ""
	}
	if province := s.Value(internal.FieldProvince); province != "" {
		return fmt.Sprintf("%s %s (%s)", postal, city, province)
	}
	return postal + " " + city
}

// TotalAmount is the amount net of VAT: the operator value, the taxable
// amount, the sum of the items, then the gross total.
func TotalAmount(quote internal.ExtractedQuote, override *float64) float64 {
	if override != nil {
		return *override
	}
	if quote.TaxableAmount != nil {
		return *quote.TaxableAmount
	}
	sum, priced := 0.0, 0
	for _, item := range quote.Items {
		if item.UnitPrice == nil {
			continue
		}
		qty := 1.0
		if item.Quantity != nil {
			qty = *item.Quantity
		}
		sum += qty * *item.UnitPrice
		priced++
	}
	if priced > 0 {
		return sum
	}
	if quote.TotalAmount != nil {
		return *quote.TotalAmount
	}
	return 0
}

// DescribeItems lists the quote items as "N. 5 Notebook, al costo unitario
// di € 800,00 + IVA", one per line, after an opening that depends on the
// award letter.
func DescribeItems(quote internal.ExtractedQuote, letter, serviceOrSupply string) string {
	if len(quote.Items) == 0 {
		return util.Deref(quote.Subject)
	}

	opening := "la fornitura dei seguenti beni:"
	switch {
	case letter == "a)":
		opening = "dei lavori di:"
	case serviceOrSupply == string(internal.AwardServices):
		opening = "del servizio di:"
	case serviceOrSupply == "" && quote.AwardType != nil && *quote.AwardType == internal.AwardServices:
		opening = "del servizio di:"
	}

	lines := []string{opening}
	for _, item := range quote.Items {
		var b strings.Builder
		if item.Quantity != nil {
			b.WriteString("N. " + FormatQuantity(*item.Quantity) + " ")
		}
		b.WriteString(strings.TrimSpace(item.Description))
		if item.UnitPrice != nil {
			b.WriteString(", al costo unitario di € " + FormatEuro(*item.UnitPrice) + " + IVA")
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// Proposal is the RUP proposal sentence, empty when the RUP is the director.
func Proposal(form Form, total float64) string {
	name := strings.TrimSpace(form.RUPName)
	if name == "" || strings.EqualFold(name, strings.TrimSpace(form.DirectorName)) {
		return ""
	}
	text := util.NormalizeSpaces("vista la proposta del Responsabile Unico del Progetto " + form.RUPTitle + " " + name)
	if date := strings.TrimSpace(form.RUPProposalDate); date != "" && total > ProposalDateThreshold {
		text += " in data " + date
	}
	return text
}

var italian = message.NewPrinter(language.Italian)

// FormatEuro prints an amount the Italian way, "1.234,56".
func FormatEuro(v float64) string {
	return italian.Sprintf("%.2f", v)
}

func FormatQuantity(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return strings.Replace(fmt.Sprintf("%g", v), ".", ",", 1)
}

func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
