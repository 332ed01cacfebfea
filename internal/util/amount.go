package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reAmountNoise      = regexp.MustCompile(`(?i)(€|eur(o)?|\s|\x{00A0})`)
	reDotThousands     = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+$`)
	reAmountCandidates = regexp.MustCompile(`-?\d{1,3}(?:[.\s]\d{3})+(?:,\d+)?|-?\d+(?:[.,]\d+)?`)
)

// ParseAmount reads an amount written the Italian way ("2.101,50", "€ 1.234")
// or the plain JSON way ("2101.50"). It returns nil when no number is found.
func ParseAmount(input string) *float64 {
	compact := reAmountNoise.ReplaceAllString(strings.TrimSpace(input), "")
	if compact == "" {
		return nil
	}

	norm := normalizeAmountToken(compact)
	parsed, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		m := reAmountCandidates.FindString(input)
		if m == "" || m == input {
			return nil
		}
		return ParseAmount(m)
	}
	return FloatPtr(parsed)
}

func normalizeAmountToken(token string) string {
	lastDot := strings.LastIndex(token, ".")
	lastComma := strings.LastIndex(token, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			return strings.ReplaceAll(strings.ReplaceAll(token, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(token, ",", "")
	case lastComma >= 0:
		if strings.Count(token, ",") > 1 {
			return strings.ReplaceAll(token, ",", "")
		}
		return strings.ReplaceAll(token, ",", ".")
	case lastDot >= 0 && reDotThousands.MatchString(token):
		return strings.ReplaceAll(token, ".", "")
	default:
		return token
	}
}
