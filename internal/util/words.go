package util

import (
	"fmt"
	"math"
	"strings"
)

var (
	wordUnits = []string{"", "uno", "due", "tre", "quattro", "cinque", "sei", "sette", "otto", "nove"}
	wordTeens = []string{"dieci", "undici", "dodici", "tredici", "quattordici", "quindici", "sedici", "diciassette", "diciotto", "diciannove"}
	wordTens  = []string{"", "dieci", "venti", "trenta", "quaranta", "cinquanta", "sessanta", "settanta", "ottanta", "novanta"}
)

// AmountInWords spells an amount in Italian the way award documents expect it:
// integer part in words, cents as digits ("milleduecentotrentaquattro/56").
func AmountInWords(amount float64) string {
	cents := int64(math.Round(math.Abs(amount) * 100))
	integer := cents / 100
	decimals := cents % 100
	if integer == 0 {
		return fmt.Sprintf("zero/%02d", decimals)
	}
	return fmt.Sprintf("%s/%02d", millionsInWords(integer), decimals)
}

func millionsInWords(n int64) string {
	if n < 1_000_000 {
		return thousandsInWords(n)
	}
	millions := n / 1_000_000
	rest := n % 1_000_000

	var b strings.Builder
	if millions == 1 {
		b.WriteString("unmilione")
	} else {
		b.WriteString(thousandsInWords(millions))
		b.WriteString("milioni")
	}
	if rest > 0 {
		b.WriteString(thousandsInWords(rest))
	}
	return b.String()
}

func thousandsInWords(n int64) string {
	if n < 1000 {
		return hundredsInWords(n)
	}
	thousands := n / 1000
	rest := n % 1000

	var b strings.Builder
	if thousands == 1 {
		b.WriteString("mille")
	} else {
		b.WriteString(hundredsInWords(thousands))
		b.WriteString("mila")
	}
	if rest > 0 {
		b.WriteString(hundredsInWords(rest))
	}
	return b.String()
}

func hundredsInWords(n int64) string {
	if n < 100 {
		return tensInWords(n)
	}
	hundreds := n / 100
	rest := n % 100

	prefix := "cento"
	if hundreds > 1 {
		prefix = wordUnits[hundreds] + "cento"
	}
	if rest == 0 {
		return prefix
	}
	// centotto, centottanta
	if rest == 8 || rest/10 == 8 {
		prefix = strings.TrimSuffix(prefix, "o")
	}
	return prefix + tensInWords(rest)
}

func tensInWords(n int64) string {
	if n < 10 {
		return wordUnits[n]
	}
	if n < 20 {
		return wordTeens[n-10]
	}
	tens := wordTens[n/10]
	unit := n % 10
	if unit == 1 || unit == 8 {
		tens = tens[:len(tens)-1]
	}
	return tens + wordUnits[unit]
}
