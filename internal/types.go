package internal

import "strings"

type Field string

const (
	FieldLegalName  Field = "legalName"
	FieldTaxCode    Field = "taxCode"
	FieldVATNumber  Field = "vatNumber"
	FieldStreet     Field = "street"
	FieldPostalCode Field = "postalCode"
	FieldCity       Field = "city"
	FieldProvince   Field = "province"
	FieldEmail      Field = "email"
	FieldPEC        Field = "pec"
	FieldPhone      Field = "phone"
)

// AllFields is the fixed field order used for merging and persistence.
var AllFields = []Field{
	FieldLegalName,
	FieldTaxCode,
	FieldVATNumber,
	FieldStreet,
	FieldPostalCode,
	FieldCity,
	FieldProvince,
	FieldEmail,
	FieldPEC,
	FieldPhone,
}

// IdentityFields are the only fields used for registry scoring. Address
// fields are left out: they are too noisy when extracted from free text.
var IdentityFields = []Field{
	FieldLegalName,
	FieldVATNumber,
	FieldTaxCode,
	FieldPEC,
	FieldEmail,
}

func ParseField(name string) (Field, bool) {
	for _, f := range AllFields {
		if string(f) == strings.TrimSpace(name) {
			return f, true
		}
	}
	return "", false
}

type SupplierFields struct {
	LegalName  *string `json:"legalName,omitempty"`
	TaxCode    *string `json:"taxCode,omitempty"`
	VATNumber  *string `json:"vatNumber,omitempty"`
	Street     *string `json:"street,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
	City       *string `json:"city,omitempty"`
	Province   *string `json:"province,omitempty"`
	Email      *string `json:"email,omitempty"`
	PEC        *string `json:"pec,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

func (s *SupplierFields) ref(field Field) **string {
	switch field {
	case FieldLegalName:
		return &s.LegalName
	case FieldTaxCode:
		return &s.TaxCode
	case FieldVATNumber:
		return &s.VATNumber
	case FieldStreet:
		return &s.Street
	case FieldPostalCode:
		return &s.PostalCode
	case FieldCity:
		return &s.City
	case FieldProvince:
		return &s.Province
	case FieldEmail:
		return &s.Email
	case FieldPEC:
		return &s.PEC
	case FieldPhone:
		return &s.Phone
	default:
		return nil
	}
}

func (s SupplierFields) Get(field Field) *string {
	p := s.ref(field)
	if p == nil {
		return nil
	}
	return *p
}

func (s *SupplierFields) Set(field Field, value *string) {
	p := s.ref(field)
	if p == nil {
		return
	}
	if value == nil {
		*p = nil
		return
	}
	v := *value
	*p = &v
}

func (s SupplierFields) Clone() SupplierFields {
	var out SupplierFields
	for _, f := range AllFields {
		out.Set(f, s.Get(f))
	}
	return out
}

// Value returns the trimmed value of a field, "" when absent.
func (s SupplierFields) Value(field Field) string {
	v := s.Get(field)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func (s SupplierFields) IsEmpty() bool {
	for _, f := range AllFields {
		if s.Value(f) != "" {
			return false
		}
	}
	return true
}

type SupplierRecord struct {
	ID string `json:"id"`
	SupplierFields
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type AwardType string

const (
	AwardSupply   AwardType = "fornitura"
	AwardServices AwardType = "servizi"
	AwardWorks    AwardType = "lavori"
)

type QuoteItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
	VATRate     *float64 `json:"vatRate,omitempty"`
}

type ExtractedQuote struct {
	Supplier       SupplierFields `json:"supplier"`
	Subject        *string        `json:"subject,omitempty"`
	AwardType      *AwardType     `json:"awardType,omitempty"`
	QuoteNumber    *string        `json:"quoteNumber,omitempty"`
	ProtocolNumber *string        `json:"protocolNumber,omitempty"`
	ProtocolDate   *string        `json:"protocolDate,omitempty"`
	Items          []QuoteItem    `json:"items,omitempty"`
	TaxableAmount  *float64       `json:"taxableAmount,omitempty"`
	VATAmount      *float64       `json:"vatAmount,omitempty"`
	TotalAmount    *float64       `json:"totalAmount,omitempty"`
	Notes          *string        `json:"notes,omitempty"`
}

type QuoteStatus string

const (
	QuoteUploaded    QuoteStatus = "UPLOADED"
	QuoteParsed      QuoteStatus = "PARSED"
	QuoteNeedsReview QuoteStatus = "NEEDS_REVIEW"
	QuoteError       QuoteStatus = "ERROR"
	QuoteGenerated   QuoteStatus = "GENERATED"
)

type QuoteSource string

const (
	SourceUpload QuoteSource = "upload"
	SourceEmail  QuoteSource = "email"
	SourceCLI    QuoteSource = "cli"
)

type QuoteRow struct {
	ID            string      `json:"id"`
	Source        QuoteSource `json:"source"`
	EmailID       *int        `json:"emailId,omitempty"`
	Filename      string      `json:"filename"`
	FilePath      string      `json:"filePath"`
	Status        QuoteStatus `json:"status"`
	RawText       string      `json:"-"`
	PageCount     int         `json:"pageCount"`
	ExtractedJSON *string     `json:"-"`
	SessionJSON   *string     `json:"-"`
	SupplierJSON  *string     `json:"-"`
	SupplierID    *string     `json:"supplierId,omitempty"`
	ErrorMessage  *string     `json:"errorMessage,omitempty"`
	CreatedAt     string      `json:"createdAt"`
	UpdatedAt     string      `json:"updatedAt"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
