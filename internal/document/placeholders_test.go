package document

import (
	"testing"

	"affidamento/internal"
	"affidamento/internal/util"

	"github.com/stretchr/testify/assert"
)

func sampleQuote() internal.ExtractedQuote {
	supply := internal.AwardSupply
	return internal.ExtractedQuote{
		Subject:        util.StringPtr("Fornitura materiale informatico"),
		AwardType:      &supply,
		QuoteNumber:    util.StringPtr("PREV-2024-042"),
		ProtocolNumber: util.StringPtr("0005229/2025"),
		ProtocolDate:   util.StringPtr("11/09/2025"),
		Items: []internal.QuoteItem{
			{Description: "Notebook HP EliteBook", Quantity: util.FloatPtr(5), UnitPrice: util.FloatPtr(800)},
			{Description: "Mouse wireless", Quantity: util.FloatPtr(5), UnitPrice: util.FloatPtr(25)},
		},
		TaxableAmount: util.FloatPtr(4125),
		VATAmount:     util.FloatPtr(907.5),
		TotalAmount:   util.FloatPtr(5032.5),
	}
}

func sampleSupplier() internal.SupplierFields {
	return internal.SupplierFields{
		LegalName:  util.StringPtr("Acme S.r.l."),
		VATNumber:  util.StringPtr("12345678901"),
		Street:     util.StringPtr("Via Roma, 10"),
		PostalCode: util.StringPtr("46100"),
		City:       util.StringPtr("Mantova"),
		Province:   util.StringPtr("MN"),
		PEC:        util.StringPtr("acme@pec.it"),
	}
}

func TestPlaceholders(t *testing.T) {
	values := Placeholders(sampleQuote(), sampleSupplier(), Form{
		BudgetChapter:   "1234",
		DirectorName:    "Dott. Mario Rossi",
		DirectorRole:    "GENERALE",
		RUPName:         "Luca Verdi",
		RUPTitle:        "ing.",
		RUPProposalDate: "15/10/2025",
		Conditions:      `Pagamento a 30 giorni\nFattura elettronica`,
	})

	assert.Equal(t, "Acme S.r.l.", values["F_Ragione"])
	assert.Equal(t, "12345678901", values["F_CF_IVA"])
	assert.Equal(t, "46100 Mantova (MN)", values["F_Cap_Comune_Provincia"])
	assert.Equal(t, "", values["F_Mail"])
	assert.Equal(t, "PEC", values["Metodo_Invio"])
	assert.Equal(t, "b)", values["Lettera"])
	assert.Equal(t, "Fornitura materiale informatico", values["Oggetto"])
	assert.Equal(t, "al preventivo n. PREV-2024-042", values["Riferimento"])
	assert.Equal(t, "0005229/2025", values["P_Numero"])
	assert.Equal(t, "4125.00", values["Totale_Numero"])
	assert.Equal(t, "quattromilacentoventicinque/00", values["Totale_Lettere"])
	assert.Equal(t, "Pagamento a 30 giorni\nFattura elettronica", values["Condizioni"])
	assert.Equal(t, "vista la proposta del Responsabile Unico del Progetto ing. Luca Verdi", values["Proposta"])
	assert.Equal(t,
		"la fornitura dei seguenti beni:\nN. 5 Notebook HP EliteBook, al costo unitario di € 800,00 + IVA\nN. 5 Mouse wireless, al costo unitario di € 25,00 + IVA",
		values["Descrizione"])

	for _, key := range []string{"F_Indirizzo", "F_Pec", "CPV", "CUP", "Codice_Lavoro", "P_Data", "Tempistiche",
		"Prescrizioni_Tecniche", "Garanzie", "Direttore_Nome", "Direttore_Ruolo", "R_Nome", "R_Interno", "R_Mail", "Capitolo_Bilancio"} {
		_, ok := values[key]
		assert.True(t, ok, key)
	}
}

func TestPlaceholdersWorks(t *testing.T) {
	works := internal.AwardWorks
	quote := internal.ExtractedQuote{
		AwardType: &works,
		Items:     []internal.QuoteItem{{Description: "Rifacimento tetto", UnitPrice: util.FloatPtr(12000)}},
	}
	values := Placeholders(quote, internal.SupplierFields{TaxCode: util.StringPtr("RSSMRA80A01E897X")}, Form{SendMethod: "Raccomandata"})

	assert.Equal(t, "a)", values["Lettera"])
	assert.Equal(t, "Raccomandata", values["Metodo_Invio"])
	assert.Equal(t, "RSSMRA80A01E897X", values["F_CF_IVA"])
	assert.Equal(t, "al preventivo", values["Riferimento"])
	assert.Equal(t, "12000.00", values["Totale_Numero"])
	assert.Equal(t, "dei lavori di:\nRifacimento tetto, al costo unitario di € 12.000,00 + IVA", values["Descrizione"])
	assert.Equal(t, "", values["F_Cap_Comune_Provincia"])
}

func TestProposal(t *testing.T) {
	form := Form{DirectorName: "Mario Rossi", RUPName: "Mario Rossi"}
	assert.Equal(t, "", Proposal(form, 10000))

	form = Form{DirectorName: "Mario Rossi", RUPName: "Luca Verdi", RUPTitle: "geom.", RUPProposalDate: "01/02/2026"}
	assert.Equal(t, "vista la proposta del Responsabile Unico del Progetto geom. Luca Verdi in data 01/02/2026", Proposal(form, 5000.01))
	assert.Equal(t, "vista la proposta del Responsabile Unico del Progetto geom. Luca Verdi", Proposal(form, 5000))
}

func TestTotalAmount(t *testing.T) {
	q := sampleQuote()
	assert.Equal(t, 4125.0, TotalAmount(q, nil))
	assert.Equal(t, 99.0, TotalAmount(q, util.FloatPtr(99)))

	q.TaxableAmount = nil
	assert.Equal(t, 4125.0, TotalAmount(q, nil))

	q.Items = nil
	assert.Equal(t, 5032.5, TotalAmount(q, nil))
}

func TestFormatEuro(t *testing.T) {
	assert.Equal(t, "800,00", FormatEuro(800))
	assert.Equal(t, "1.234,56", FormatEuro(1234.56))
	assert.Equal(t, "2,5", FormatQuantity(2.5))
	assert.Equal(t, "3", FormatQuantity(3))
}
