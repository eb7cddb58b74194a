package app

import (
	"math/rand"

	"en-words-service/internal/domain"
)

const maxDistractors = 3

// CreateOptions builds the shuffled option set for target: up to three
// distractor meanings drawn uniformly from pool plus the target's own meaning.
// Pools smaller than four words yield fewer options; a single-word pool yields
// just the correct one.
func CreateOptions(target domain.Word, pool []domain.Word, rng *rand.Rand) []domain.Option {
	candidates := make([]domain.Word, 0, len(pool))
	seen := map[string]bool{target.ID: true}
	for _, word := range pool {
		if seen[word.ID] {
			continue
		}
		seen[word.ID] = true
		candidates = append(candidates, word)
	}

	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > maxDistractors {
		candidates = candidates[:maxDistractors]
	}

	options := make([]domain.Option, 0, len(candidates)+1)
	for _, word := range candidates {
		options = append(options, domain.Option{ID: word.ID, Text: word.Meaning})
	}
	options = append(options, domain.Option{ID: target.ID, Text: target.Meaning, IsCorrect: true})

	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}
