package models

import "strings"

// maxSuggestDistance is the largest edit distance for which SuggestMode offers a mode.
const maxSuggestDistance = 2

// SuggestMode returns the mode closest to an unrecognized request such as
// "z80" or "ZX80BASC". Mode matching itself stays exact; this only feeds hints.
func SuggestMode(s string) (Mode, bool) {
	if s == "" || Mode(s).Valid() {
		return "", false
	}
	upper := strings.ToUpper(s)
	best, bestDist := Mode(""), maxSuggestDistance+1
	for _, m := range allModes {
		if d := editDistance(upper, string(m)); d < bestDist {
			best, bestDist = m, d
		}
	}
	return best, best != ""
}

// editDistance is the optimal string alignment distance between a and b:
// insertions, deletions, substitutions and adjacent transpositions cost one.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1)
			}
		}
	}
	return d[len(ra)][len(rb)]
}
