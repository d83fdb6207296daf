package alerr

import (
	"fmt"
	"strings"
)

// editDistance computes the Levenshtein distance between two strings.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
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
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// FindClosestMatch returns the option closest to input within an edit distance of 3.
func FindClosestMatch(input string, options []string) (string, bool) {
	const maxDistance = 3

	best := ""
	bestDist := maxDistance + 1
	for _, opt := range options {
		if d := editDistance(strings.ToLower(input), strings.ToLower(opt)); d < bestDist {
			bestDist = d
			best = opt
		}
	}

	if bestDist <= maxDistance {
		return best, true
	}
	return "", false
}

// SuggestSimilar returns "did you mean 'X'?" for each input with a close
// option, joined with "; ". Returns "" when nothing is close.
func SuggestSimilar(inputs []string, options []string) string {
	var hints []string
	for _, in := range inputs {
		if match, ok := FindClosestMatch(in, options); ok {
			hints = append(hints, fmt.Sprintf("%s: did you mean '%s'?", in, match))
		}
	}
	return strings.Join(hints, "; ")
}
