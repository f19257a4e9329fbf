// Package similarity scores how close two strings are using Levenshtein edit
// distance. Scores are pure functions of their inputs; nothing here touches
// I/O or shared state.
package similarity

// EditDistance returns the Levenshtein distance between a and b: the minimum
// number of single-rune insertions, deletions, and substitutions needed to
// turn one into the other. Comparison is case-sensitive and operates on
// runes, so a multi-byte character counts as one edit.
func EditDistance(a, b string) int {
	left := []rune(a)
	right := []rune(b)

	if len(left) == 0 {
		return len(right)
	}
	if len(right) == 0 {
		return len(left)
	}

	prev := make([]int, len(right)+1)
	curr := make([]int, len(right)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(left); i++ {
		curr[0] = i
		for j := 1; j <= len(right); j++ {
			substitution := prev[j-1]
			if left[i-1] != right[j-1] {
				substitution++
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, substitution)
		}
		prev, curr = curr, prev
	}

	return prev[len(right)]
}

// Ratio returns a normalized similarity score in [0, 1]:
//
//	1 - EditDistance(a, b) / max(len(a), len(b))
//
// with lengths measured in runes. Identical strings score 1.0, including two
// empty strings; an empty string against a non-empty one scores 0.0. The
// score is symmetric.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}

	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}

	return 1.0 - float64(EditDistance(a, b))/float64(longest)
}
