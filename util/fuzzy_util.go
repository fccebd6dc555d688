package util

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FindClosestName は大文字小文字を無視した編集距離が maxDistance 以内の最近傍候補を返す
func FindClosestName(input string, candidates []string, maxDistance int) string {
	lower := strings.ToLower(input)
	var best string
	bestDistance := maxDistance + 1
	for _, name := range candidates {
		distance := fuzzy.LevenshteinDistance(lower, strings.ToLower(name))
		if distance < bestDistance {
			bestDistance = distance
			best = name
		}
	}
	return best
}
