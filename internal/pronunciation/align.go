package pronunciation

// align greedily matches every expected word with the most similar spoken
// word that has not been claimed yet. Ties go to the earliest spoken word.
// Spoken words left unclaimed are appended as extra entries in spoken order.
func align(spoken, expected []string) []WordAnalysis {
	consumed := make([]bool, len(spoken))
	analysis := make([]WordAnalysis, 0, len(expected)+len(spoken))

	for _, want := range expected {
		best, bestSim := -1, 0.0
		for i, got := range spoken {
			if consumed[i] {
				continue
			}
			if sim := WordSimilarity(got, want); best < 0 || sim > bestSim {
				best, bestSim = i, sim
			}
		}

		if best < 0 || bestSim <= matchFloor {
			analysis = append(analysis, WordAnalysis{Expected: want, Status: StatusMissing})
			continue
		}

		consumed[best] = true
		analysis = append(analysis, WordAnalysis{
			Expected:   want,
			Spoken:     spoken[best],
			Status:     statusFor(bestSim),
			Similarity: bestSim,
		})
	}

	for i, got := range spoken {
		if !consumed[i] {
			analysis = append(analysis, WordAnalysis{Spoken: got, Status: StatusExtra})
		}
	}
	return analysis
}

// statusFor labels an accepted match by its similarity.
func statusFor(sim float64) Status {
	switch {
	case sim >= correctThreshold:
		return StatusCorrect
	case sim >= similarThreshold:
		return StatusSimilar
	default:
		return StatusIncorrect
	}
}
