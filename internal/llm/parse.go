package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"affidamento/internal"
	"affidamento/internal/util"
)

// flexString accepts JSON strings and numbers (VAT numbers often come back as numbers).
type flexString struct {
	Value *string
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.Value = util.NonEmptyPtr(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	f.Value = util.NonEmptyPtr(n.String())
	return nil
}

// flexNumber accepts JSON numbers and Italian formatted strings ("2.101,50").
type flexNumber struct {
	Value *float64
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.Value = util.ParseAmount(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	f.Value = &v
	return nil
}

type supplierPayload struct {
	LegalName  flexString `json:"ragioneSociale"`
	VATNumber  flexString `json:"partitaIva"`
	TaxCode    flexString `json:"codiceFiscale"`
	Address    flexString `json:"indirizzo"`
	Street     flexString `json:"via"`
	PostalCode flexString `json:"cap"`
	City       flexString `json:"comune"`
	Province   flexString `json:"provincia"`
	Email      flexString `json:"email"`
	PEC        flexString `json:"pec"`
	Phone      flexString `json:"telefono"`
}

type itemPayload struct {
	Description flexString `json:"descrizione"`
	Quantity    flexNumber `json:"quantita"`
	UnitPrice   flexNumber `json:"prezzoUnitario"`
	VATRate     flexNumber `json:"iva"`
}

type quotePayload struct {
	Supplier       supplierPayload `json:"fornitore"`
	Subject        flexString      `json:"oggetto"`
	AwardType      flexString      `json:"tipoAffidamento"`
	QuoteNumber    flexString      `json:"numeroPreventivo"`
	ProtocolNumber flexString      `json:"numeroProtocollo"`
	ProtocolDate   flexString      `json:"dataProtocollo"`
	Items          []itemPayload   `json:"vociPreventivo"`
	TaxableAmount  flexNumber      `json:"importoImponibile"`
	VATAmount      flexNumber      `json:"importoIva"`
	TotalAmount    flexNumber      `json:"importoTotale"`
	Notes          flexString      `json:"note"`
}

var reJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

// ParseQuoteJSON maps the model output onto an ExtractedQuote.
func ParseQuoteJSON(raw string) (internal.ExtractedQuote, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return internal.ExtractedQuote{}, errors.New("empty model output")
	}
	if !strings.HasPrefix(raw, "{") {
		// models sometimes wrap the object in prose or code fences
		raw = reJSONObject.FindString(raw)
		if raw == "" {
			return internal.ExtractedQuote{}, errors.New("model output has no json object")
		}
	}

	var p quotePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return internal.ExtractedQuote{}, fmt.Errorf("decode model output: %w", err)
	}

	out := internal.ExtractedQuote{
		Supplier:       p.Supplier.toFields(),
		Subject:        p.Subject.Value,
		AwardType:      parseAwardType(p.AwardType.Value),
		QuoteNumber:    p.QuoteNumber.Value,
		ProtocolNumber: p.ProtocolNumber.Value,
		ProtocolDate:   p.ProtocolDate.Value,
		TaxableAmount:  p.TaxableAmount.Value,
		VATAmount:      p.VATAmount.Value,
		TotalAmount:    p.TotalAmount.Value,
		Notes:          p.Notes.Value,
	}
	for _, item := range p.Items {
		if item.Description.Value == nil {
			continue
		}
		out.Items = append(out.Items, internal.QuoteItem{
			Description: *item.Description.Value,
			Quantity:    item.Quantity.Value,
			UnitPrice:   item.UnitPrice.Value,
			VATRate:     item.VATRate.Value,
		})
	}
	return out, nil
}

func (s supplierPayload) toFields() internal.SupplierFields {
	fields := internal.SupplierFields{
		LegalName:  s.LegalName.Value,
		VATNumber:  normalizeVAT(s.VATNumber.Value),
		TaxCode:    s.TaxCode.Value,
		Street:     s.Street.Value,
		PostalCode: s.PostalCode.Value,
		City:       s.City.Value,
		Province:   s.Province.Value,
		Email:      s.Email.Value,
		PEC:        s.PEC.Value,
		Phone:      s.Phone.Value,
	}
	if s.Address.Value != nil {
		addr := SplitAddress(*s.Address.Value)
		if fields.Street == nil {
			fields.Street = addr.Street
		}
		if fields.PostalCode == nil {
			fields.PostalCode = addr.PostalCode
		}
		if fields.City == nil {
			fields.City = addr.City
		}
		if fields.Province == nil {
			fields.Province = addr.Province
		}
	}
	return fields
}

var reVATPrefix = regexp.MustCompile(`(?i)^(p\.?\s*iva|partita\s+iva)?\s*:?\s*(it)?\s*`)

// normalizeVAT drops the "P.IVA" label and the IT country prefix from an
// 11 digit Italian VAT number; anything else is kept as written.
func normalizeVAT(v *string) *string {
	if v == nil {
		return nil
	}
	s := reVATPrefix.ReplaceAllString(strings.TrimSpace(*v), "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) == 11 && strings.Trim(s, "0123456789") == "" {
		return &s
	}
	return v
}

func parseAwardType(v *string) *internal.AwardType {
	if v == nil {
		return nil
	}
	var t internal.AwardType
	switch strings.ToLower(strings.TrimSpace(*v)) {
	case "fornitura", "forniture":
		t = internal.AwardSupply
	case "servizi", "servizio":
		t = internal.AwardServices
	case "lavori", "lavoro":
		t = internal.AwardWorks
	default:
		return nil
	}
	return &t
}

type Address struct {
	Street     *string
	PostalCode *string
	City       *string
	Province   *string
}

var reAddressTail = regexp.MustCompile(`(\d{5})\s+([^\n(,]+?)\s*(?:\(\s*([A-Za-z]{2})\s*\))?\s*$`)

// SplitAddress splits "Via Roma, 10\n46100 Mantova (MN)" into its parts.
// Text that does not end with a postal code is returned as street only.
func SplitAddress(address string) Address {
	address = strings.TrimSpace(strings.ReplaceAll(address, "\r\n", "\n"))
	if address == "" {
		return Address{}
	}
	m := reAddressTail.FindStringSubmatchIndex(address)
	if m == nil {
		return Address{Street: util.NonEmptyPtr(util.NormalizeSpaces(address))}
	}

	street := strings.Trim(address[:m[0]], " ,-\n\t")
	out := Address{
		Street:     util.NonEmptyPtr(util.NormalizeSpaces(street)),
		PostalCode: util.NonEmptyPtr(address[m[2]:m[3]]),
		City:       util.NonEmptyPtr(util.NormalizeSpaces(address[m[4]:m[5]])),
	}
	if m[6] >= 0 {
		out.Province = util.NonEmptyPtr(strings.ToUpper(address[m[6]:m[7]]))
	}
	return out
}
