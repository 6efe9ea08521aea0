package verify

import "strings"

// Similarity scores two names in [0, 1] after normalization: 1 for equal
// names, 0.8 when one contains the other, otherwise one minus the edit
// distance over the longer length. It is symmetric.
func Similarity(a, b string) float64 {
	s1 := Normalize(a)
	s2 := Normalize(b)
	if s1 == s2 {
		return 1.0
	}
	if strings.Contains(s1, s2) || strings.Contains(s2, s1) {
		return 0.8
	}
	longer := max(len(s1), len(s2))
	if longer == 0 {
		return 1.0
	}
	return 1 - float64(Levenshtein(s1, s2))/float64(longer)
}

// Levenshtein returns the edit distance between a and b in runes.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
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
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
