package textnorm

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity scores two already-normalized strings in [0,1]. Implementations
// must be symmetric and deterministic.
type Similarity func(a, b string) float64

const (
	SimilarityLevenshtein = "levenshtein"
	SimilarityTokenSort   = "token_sort"
)

// Levenshtein is 1 - editDistance/maxRuneLen.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0.0
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/float64(longest)
}

// TokenSort compares a and b with their words sorted, so word order does not
// matter ("engineer backend" vs "backend engineer").
func TokenSort(a, b string) float64 {
	return Levenshtein(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	f := strings.Fields(s)
	sort.Strings(f)
	return strings.Join(f, " ")
}

// SimilarityByName resolves a configured similarity name.
func SimilarityByName(name string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SimilarityLevenshtein:
		return Levenshtein, nil
	case SimilarityTokenSort:
		return TokenSort, nil
	default:
		return nil, fmt.Errorf("unknown similarity %q (valid: %s, %s)", name, SimilarityLevenshtein, SimilarityTokenSort)
	}
}
