package reconcile

import (
	"strings"

	"affidamento/internal"
)

// Side names where a field value comes from.
type Side string

const (
	SideRegistry   Side = "registry"
	SideExtraction Side = "extraction"
)

// ConflictDefaultPolicy is the side used for conflicting fields until a
// human picks one.
const ConflictDefaultPolicy = SideRegistry

func ParseSide(s string) (Side, bool) {
	switch side := Side(strings.ToLower(strings.TrimSpace(s))); side {
	case SideRegistry, SideExtraction:
		return side, true
	case "db", "database":
		return SideRegistry, true
	case "pdf", "new", "preventivo":
		return SideExtraction, true
	default:
		return "", false
	}
}

type Category string

const (
	CategoryAgreed       Category = "agreed"
	CategoryConflict     Category = "conflict"
	CategoryRegistryOnly Category = "registry_only"
	CategoryNovel        Category = "novel"
	CategoryEmpty        Category = "empty"
)

type Conflict struct {
	Field           internal.Field `json:"field"`
	RegistryValue   string         `json:"registryValue"`
	ExtractionValue string         `json:"extractionValue"`
}

func (c Conflict) Value(side Side) string {
	if side == SideExtraction {
		return c.ExtractionValue
	}
	return c.RegistryValue
}

type NovelDatum struct {
	Field internal.Field `json:"field"`
	Value string         `json:"value"`
}

type ResolutionOutcome struct {
	Merged         internal.SupplierFields     `json:"merged"`
	Conflicts      []Conflict                  `json:"conflicts"`
	NovelData      []NovelDatum                `json:"novelData"`
	Categories     map[internal.Field]Category `json:"categories"`
	NeedsUserInput bool                        `json:"needsUserInput"`
}

// Resolve merges an extraction into the matched registry record field by
// field. Conflicts provisionally take the ConflictDefaultPolicy side.
func Resolve(extracted internal.SupplierFields, matched internal.SupplierRecord) ResolutionOutcome {
	out := ResolutionOutcome{
		Conflicts:  []Conflict{},
		NovelData:  []NovelDatum{},
		Categories: make(map[internal.Field]Category, len(internal.AllFields)),
	}

	for _, f := range internal.AllFields {
		ext := extracted.Get(f)
		reg := matched.Get(f)
		hasExt, hasReg := present(ext), present(reg)

		switch {
		case hasExt && hasReg:
			if Normalize(ext) == Normalize(reg) {
				out.Merged.Set(f, reg)
				out.Categories[f] = CategoryAgreed
				continue
			}
			c := Conflict{Field: f, RegistryValue: *reg, ExtractionValue: *ext}
			out.Conflicts = append(out.Conflicts, c)
			v := c.Value(ConflictDefaultPolicy)
			out.Merged.Set(f, &v)
			out.Categories[f] = CategoryConflict
		case hasReg:
			out.Merged.Set(f, reg)
			out.Categories[f] = CategoryRegistryOnly
		case hasExt:
			out.NovelData = append(out.NovelData, NovelDatum{Field: f, Value: *ext})
			out.Merged.Set(f, ext)
			out.Categories[f] = CategoryNovel
		default:
			out.Categories[f] = CategoryEmpty
		}
	}

	out.NeedsUserInput = len(out.Conflicts) > 0 || len(out.NovelData) > 0
	return out
}

// SupplierMatch is what the engine hands back for one extraction.
type SupplierMatch struct {
	Extracted      internal.SupplierFields `json:"extracted"`
	Merged         internal.SupplierFields `json:"merged"`
	MatchedID      string                  `json:"matchedId,omitempty"`
	IsFromDatabase bool                    `json:"isFromDatabase"`
	MatchCount     int                     `json:"matchCount"`
	MatchedFields  []internal.Field        `json:"matchedFields"`
	Outcome        *ResolutionOutcome      `json:"outcome,omitempty"`
}

func (m SupplierMatch) NeedsUserInput() bool {
	return m.IsFromDatabase && m.Outcome != nil && m.Outcome.NeedsUserInput
}

func (m SupplierMatch) Conflicts() []Conflict {
	if m.Outcome == nil {
		return nil
	}
	return m.Outcome.Conflicts
}

func (m SupplierMatch) NovelData() []NovelDatum {
	if m.Outcome == nil {
		return nil
	}
	return m.Outcome.NovelData
}

func fallbackMatch(extracted internal.SupplierFields) SupplierMatch {
	return SupplierMatch{
		Extracted:     extracted.Clone(),
		Merged:        extracted.Clone(),
		MatchedFields: []internal.Field{},
	}
}
