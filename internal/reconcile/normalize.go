package reconcile

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds a field value into its comparison form: NFC, lower case,
// trimmed, inner whitespace collapsed to a single space.
func Normalize(value *string) string {
	if value == nil {
		return ""
	}
	s := norm.NFC.String(*value)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// a Caser keeps state, one per call
	return cases.Lower(language.Und).String(s)
}

// FieldsMatch reports whether both values are present and equal once normalized.
func FieldsMatch(extracted, stored *string) bool {
	a := Normalize(extracted)
	if a == "" {
		return false
	}
	b := Normalize(stored)
	if b == "" {
		return false
	}
	return a == b
}

func present(value *string) bool {
	return Normalize(value) != ""
}
