package rag

import "math"

// MMRSelect picks up to topK document indexes by maximal marginal
// relevance: lambda weighs similarity to the query against the highest
// similarity to anything already picked. Ties keep the lower index.
func MMRSelect(query []float64, docs [][]float64, topK int, lambda float64) ([]int, error) {
	if len(query) == 0 || topK <= 0 {
		return nil, nil
	}

	relevance := make([]float64, len(docs))
	candidates := make([]int, 0, len(docs))
	for i, d := range docs {
		if len(d) == 0 {
			continue
		}
		score, err := Cosine(query, d)
		if err != nil {
			return nil, err
		}
		relevance[i] = score
		candidates = append(candidates, i)
	}

	selected := make([]int, 0, min(topK, len(candidates)))
	for len(selected) < topK && len(candidates) > 0 {
		best, bestScore := -1, math.Inf(-1)
		for pos, i := range candidates {
			var diversity float64
			for _, j := range selected {
				sim, err := Cosine(docs[i], docs[j])
				if err != nil {
					return nil, err
				}
				diversity = math.Max(diversity, sim)
			}
			score := lambda*relevance[i] - (1-lambda)*diversity
			if score > bestScore {
				best, bestScore = pos, score
			}
		}
		selected = append(selected, candidates[best])
		candidates = append(candidates[:best], candidates[best+1:]...)
	}
	return selected, nil
}
