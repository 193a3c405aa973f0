package normalize

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// streetKeySeparator joins the street and admin-area parts of a key. It never
// appears in normalized text, so keys cannot collide across fields.
const streetKeySeparator = "|"

// Normalize canonicalizes free text into a comparable key: diacritics are
// decomposed to base letters, the result is lower-cased and internal
// whitespace collapses to single spaces. The function is pure and total;
// empty input yields the empty key.
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// StreetKey composes a normalized street name with its admin area so that
// same-named streets in different areas map to distinct keys.
func StreetKey(name, adminArea string) string {
	return Normalize(name) + streetKeySeparator + Normalize(adminArea)
}

// Similarity returns an edit-distance ratio in [0,1] between the normalized
// forms of a and b. Identical keys score 1, an empty side scores 0.
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with the usual two-row dynamic program.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
