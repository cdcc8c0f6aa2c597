// File: internal/similarity/similarity.go
// Description: String metrics and the default feature-similarity calculator
// used by the healing engine. All functions are pure; the calculator is
// stateless and safe for concurrent use.
package similarity

import (
	"strings"
	"unicode"
)

// NormalizeText lowercases, strips punctuation and collapses whitespace.
// Healing text comparisons always run on normalized text so that cosmetic
// changes ("Submit Order!" vs "Submit Order") compare equal.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// Punctuation is dropped outright.
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// SignificantWords returns up to max words longer than two characters from
// the normalized form of s, in order of appearance.
func SignificantWords(s string, max int) []string {
	words := strings.Fields(NormalizeText(s))
	out := make([]string, 0, max)
	for _, w := range words {
		if len(w) > 2 {
			out = append(out, w)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

// Levenshtein computes the edit distance between two strings.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// TextSimilarity is the normalized Levenshtein similarity of the normalized
// forms of a and b: 1 - distance/maxLength, in [0,1].
func TextSimilarity(a, b string) float64 {
	na, nb := NormalizeText(a), NormalizeText(b)
	if na == nb {
		return 1.0
	}
	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Levenshtein(na, nb))/float64(maxLen)
}

// Jaccard computes the Jaccard index of two token sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
