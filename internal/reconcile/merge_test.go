package reconcile

import (
	"testing"

	"affidamento/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCategories(t *testing.T) {
	matched := internal.SupplierRecord{ID: "r1", SupplierFields: fields(map[internal.Field]string{
		internal.FieldLegalName: "Acme Srl",
		internal.FieldVATNumber: "12345678901",
		internal.FieldCity:      "Mantova",
		internal.FieldPhone:     "0376 1",
	})}
	extracted := fields(map[internal.Field]string{
		internal.FieldLegalName: "ACME SRL",
		internal.FieldVATNumber: "12345678901",
		internal.FieldCity:      "Brescia",
		internal.FieldEmail:     "info@acme.it",
		internal.FieldStreet:    "   ",
	})

	got := Resolve(extracted, matched)

	want := map[internal.Field]Category{
		internal.FieldLegalName:  CategoryAgreed,
		internal.FieldTaxCode:    CategoryEmpty,
		internal.FieldVATNumber:  CategoryAgreed,
		internal.FieldStreet:     CategoryEmpty,
		internal.FieldPostalCode: CategoryEmpty,
		internal.FieldCity:       CategoryConflict,
		internal.FieldProvince:   CategoryEmpty,
		internal.FieldEmail:      CategoryNovel,
		internal.FieldPEC:        CategoryEmpty,
		internal.FieldPhone:      CategoryRegistryOnly,
	}
	assert.Equal(t, want, got.Categories)
	require.Len(t, got.Categories, len(internal.AllFields))

	assert.Equal(t, "Acme Srl", got.Merged.Value(internal.FieldLegalName))
	assert.Equal(t, "Mantova", got.Merged.Value(internal.FieldCity))
	assert.Equal(t, "info@acme.it", got.Merged.Value(internal.FieldEmail))
	assert.Equal(t, "0376 1", got.Merged.Value(internal.FieldPhone))
	assert.Nil(t, got.Merged.Street)
	assert.Nil(t, got.Merged.PEC)

	assert.Equal(t, []Conflict{{Field: internal.FieldCity, RegistryValue: "Mantova", ExtractionValue: "Brescia"}}, got.Conflicts)
	assert.Equal(t, []NovelDatum{{Field: internal.FieldEmail, Value: "info@acme.it"}}, got.NovelData)
	assert.True(t, got.NeedsUserInput)
}

func TestResolveNothingToAsk(t *testing.T) {
	matched := internal.SupplierRecord{ID: "r1", SupplierFields: fields(map[internal.Field]string{
		internal.FieldLegalName: "Beta SpA",
		internal.FieldVATNumber: "98765432109",
		internal.FieldCity:      "Verona",
	})}
	extracted := fields(map[internal.Field]string{
		internal.FieldLegalName: "beta spa",
		internal.FieldVATNumber: "98765432109",
	})

	got := Resolve(extracted, matched)
	assert.False(t, got.NeedsUserInput)
	assert.Empty(t, got.Conflicts)
	assert.Empty(t, got.NovelData)
	assert.Equal(t, "Beta SpA", got.Merged.Value(internal.FieldLegalName))
	assert.Equal(t, "Verona", got.Merged.Value(internal.FieldCity))
}

func TestResolveIsDeterministic(t *testing.T) {
	matched := internal.SupplierRecord{ID: "r1", SupplierFields: fields(map[internal.Field]string{
		internal.FieldLegalName: "Acme Srl",
		internal.FieldCity:      "Mantova",
		internal.FieldProvince:  "MN",
		internal.FieldEmail:     "a@acme.it",
	})}
	extracted := fields(map[internal.Field]string{
		internal.FieldLegalName: "Acme",
		internal.FieldCity:      "Brescia",
		internal.FieldProvince:  "BS",
		internal.FieldPEC:       "acme@pec.it",
		internal.FieldPhone:     "030 1",
	})

	first := Resolve(extracted, matched)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Resolve(extracted, matched))
	}
	fieldsOf := func(cs []Conflict) []internal.Field {
		out := []internal.Field{}
		for _, c := range cs {
			out = append(out, c.Field)
		}
		return out
	}
	assert.Equal(t, []internal.Field{internal.FieldLegalName, internal.FieldCity, internal.FieldProvince}, fieldsOf(first.Conflicts))
}

func TestParseSide(t *testing.T) {
	side, ok := ParseSide("extraction")
	assert.True(t, ok)
	assert.Equal(t, SideExtraction, side)

	side, ok = ParseSide("db")
	assert.True(t, ok)
	assert.Equal(t, SideRegistry, side)

	side, ok = ParseSide(" Preventivo ")
	assert.True(t, ok)
	assert.Equal(t, SideExtraction, side)

	_, ok = ParseSide("both")
	assert.False(t, ok)
}
