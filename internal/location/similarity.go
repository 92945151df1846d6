package location

import "sort"

// DefaultThreshold is the minimum similarity FindSimilar callers use unless
// they have a reason to be stricter or looser.
const DefaultThreshold = 0.8

// Match is a candidate that passed the similarity threshold
type Match struct {
	Location   string  `json:"location"`
	Similarity float64 `json:"similarity"`
}

// LevenshteinDistance returns the edit distance between a and b, counted in
// runes, using the full (len(a)+1)x(len(b)+1) matrix.
func LevenshteinDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	rows, cols := len(ra)+1, len(rb)+1
	dist := make([][]int, rows)
	for i := range dist {
		dist[i] = make([]int, cols)
		dist[i][0] = i
	}
	for j := 1; j < cols; j++ {
		dist[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			dist[i][j] = min(
				dist[i-1][j]+1,      // deletion
				dist[i][j-1]+1,      // insertion
				dist[i-1][j-1]+cost, // substitution
			)
		}
	}

	return dist[rows-1][cols-1]
}

// Similarity compares the normalized forms of a and b and returns a value in
// [0, 1]: 1 for identical text, 0 when either side is empty, otherwise
// (maxLen - distance) / maxLen.
func Similarity(a, b string) float64 {
	na := NormalizeText(a)
	nb := NormalizeText(b)

	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	maxLen := max(len([]rune(na)), len([]rune(nb)))
	distance := LevenshteinDistance(na, nb)
	return float64(maxLen-distance) / float64(maxLen)
}

// FindSimilar returns the candidates whose similarity to input is at least
// threshold, best first. Candidates with equal similarity keep the order they
// had in the candidates slice.
func FindSimilar(input string, candidates []string, threshold float64) []Match {
	matches := make([]Match, 0)
	for _, candidate := range candidates {
		score := Similarity(input, candidate)
		if score >= threshold {
			matches = append(matches, Match{Location: candidate, Similarity: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}

// Canonicalize returns the best known location for input when one clears
// threshold, otherwise the normalized input itself.
func Canonicalize(input string, known []string, threshold float64) (string, bool) {
	matches := FindSimilar(input, known, threshold)
	if len(matches) == 0 {
		return NormalizeText(input), false
	}
	return matches[0].Location, true
}
