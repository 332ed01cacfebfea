package reconcile

import "affidamento/internal"

// MatchThreshold is the minimum number of identity fields a registry record
// must share with the extraction to be selected.
const MatchThreshold = 2

type MatchResult struct {
	Candidate      *internal.SupplierRecord `json:"candidate,omitempty"`
	MatchCount     int                      `json:"matchCount"`
	MatchedFields  []internal.Field         `json:"matchedFields"`
	IsFromDatabase bool                     `json:"isFromDatabase"`
}

// Score picks the registry record sharing the most identity fields with the
// extraction. On equal counts the record seen first wins.
func Score(extracted internal.SupplierFields, registry []internal.SupplierRecord) MatchResult {
	bestIdx := -1
	var bestFields []internal.Field

	for i := range registry {
		matched := matchedIdentityFields(extracted, registry[i].SupplierFields)
		if len(matched) < MatchThreshold {
			continue
		}
		if bestIdx == -1 || len(matched) > len(bestFields) {
			bestIdx = i
			bestFields = matched
		}
	}

	if bestIdx == -1 {
		return MatchResult{MatchCount: 0, MatchedFields: []internal.Field{}}
	}

	candidate := registry[bestIdx]
	candidate.SupplierFields = candidate.SupplierFields.Clone()
	return MatchResult{
		Candidate:      &candidate,
		MatchCount:     len(bestFields),
		MatchedFields:  bestFields,
		IsFromDatabase: true,
	}
}

func matchedIdentityFields(extracted, stored internal.SupplierFields) []internal.Field {
	out := make([]internal.Field, 0, len(internal.IdentityFields))
	for _, f := range internal.IdentityFields {
		if FieldsMatch(extracted.Get(f), stored.Get(f)) {
			out = append(out, f)
		}
	}
	return out
}
