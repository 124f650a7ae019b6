package util

import (
	"strings"
	"unicode"
)

// NameTokens splits a case name into lowercase word tokens longer than two
// characters. Punctuation separates tokens, so "Bd." and "Educ." become "educ".
func NameTokens(name string) map[string]struct{} {
	tokens := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	for _, w := range words {
		w = strings.Trim(w, "'")
		if len([]rune(w)) > 2 {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

// TokenOverlap returns |A∩B| / max(|A|,|B|) over NameTokens of both names,
// or 0 when either side has no tokens
func TokenOverlap(a, b string) float64 {
	ta, tb := NameTokens(a), NameTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}

	denom := len(ta)
	if len(tb) > denom {
		denom = len(tb)
	}
	return float64(shared) / float64(denom)
}
