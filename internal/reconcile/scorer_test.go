package reconcile

import (
	"testing"

	"affidamento/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreBelowThreshold(t *testing.T) {
	registry := []internal.SupplierRecord{
		{ID: "a", SupplierFields: fields(map[internal.Field]string{
			internal.FieldLegalName: "Gamma Srl",
			internal.FieldVATNumber: "00000000000",
		})},
	}
	extracted := fields(map[internal.Field]string{
		internal.FieldLegalName: "Gamma Srl",
		internal.FieldVATNumber: "11122233344",
	})

	got := Score(extracted, registry)
	assert.False(t, got.IsFromDatabase)
	assert.Nil(t, got.Candidate)
	assert.Equal(t, 0, got.MatchCount)
	assert.Empty(t, got.MatchedFields)
}

func TestScoreIgnoresAddressFields(t *testing.T) {
	registry := []internal.SupplierRecord{
		{ID: "a", SupplierFields: fields(map[internal.Field]string{
			internal.FieldLegalName:  "Delta Srl",
			internal.FieldStreet:     "Via Roma 1",
			internal.FieldPostalCode: "46100",
			internal.FieldCity:       "Mantova",
			internal.FieldPhone:      "0376 123456",
		})},
	}
	extracted := registry[0].SupplierFields.Clone()

	got := Score(extracted, registry)
	assert.False(t, got.IsFromDatabase)
	assert.Equal(t, 0, got.MatchCount)
}

func TestScorePicksBestAndFirstOnTie(t *testing.T) {
	registry := []internal.SupplierRecord{
		{ID: "two-a", SupplierFields: fields(map[internal.Field]string{
			internal.FieldLegalName: "Acme Srl",
			internal.FieldEmail:     "info@acme.it",
		})},
		{ID: "two-b", SupplierFields: fields(map[internal.Field]string{
			internal.FieldLegalName: "Acme Srl",
			internal.FieldPEC:       "acme@pec.it",
		})},
		{ID: "three", SupplierFields: fields(map[internal.Field]string{
			internal.FieldLegalName: "ACME srl",
			internal.FieldVATNumber: "12345678901",
			internal.FieldTaxCode:   "12345678901",
		})},
	}

	extracted := fields(map[internal.Field]string{
		internal.FieldLegalName: "Acme Srl",
		internal.FieldEmail:     "info@acme.it",
		internal.FieldPEC:       "acme@pec.it",
	})
	got := Score(extracted, registry)
	require.True(t, got.IsFromDatabase)
	assert.Equal(t, "two-a", got.Candidate.ID)
	assert.Equal(t, 2, got.MatchCount)

	extracted.Set(internal.FieldVATNumber, sp("12345678901"))
	extracted.Set(internal.FieldTaxCode, sp("12345678901"))
	got = Score(extracted, registry)
	require.True(t, got.IsFromDatabase)
	assert.Equal(t, "three", got.Candidate.ID)
	assert.Equal(t, 3, got.MatchCount)
	assert.Equal(t, []internal.Field{internal.FieldLegalName, internal.FieldVATNumber, internal.FieldTaxCode}, got.MatchedFields)
}

func TestScoreCountMatchesFields(t *testing.T) {
	registry := []internal.SupplierRecord{
		{ID: "x", SupplierFields: fields(map[internal.Field]string{
			internal.FieldLegalName: "Eta Srl",
			internal.FieldVATNumber: "1",
			internal.FieldTaxCode:   "2",
			internal.FieldPEC:       "eta@pec.it",
			internal.FieldEmail:     "eta@eta.it",
		})},
	}
	inputs := []internal.SupplierFields{
		{},
		fields(map[internal.Field]string{internal.FieldLegalName: "eta srl"}),
		fields(map[internal.Field]string{internal.FieldLegalName: "eta srl", internal.FieldPEC: "ETA@pec.it"}),
		registry[0].SupplierFields.Clone(),
	}
	for _, in := range inputs {
		got := Score(in, registry)
		assert.Equal(t, got.MatchCount, len(got.MatchedFields))
		assert.Equal(t, got.MatchCount >= MatchThreshold, got.IsFromDatabase)
	}
}
