package pronunciation

import "math"

// Length-ratio band inside which the spoken attempt earns full length score.
const (
	minLengthRatio = 0.8
	maxLengthRatio = 1.2
)

// scores holds the four sub-scores of an evaluation.
type scores struct {
	accuracy      float64
	pronunciation float64
	fluency       float64
	completeness  float64
}

// overall blends the sub-scores into the value that selects the level and
// the feedback lead sentence.
func (s scores) overall() float64 {
	return s.accuracy*0.4 + s.pronunciation*0.3 + s.fluency*0.2 + s.completeness*0.1
}

func (s scores) rounded() scores {
	return scores{
		accuracy:      round(s.accuracy),
		pronunciation: round(s.pronunciation),
		fluency:       round(s.fluency),
		completeness:  round(s.completeness),
	}
}

func computeScores(analysis []WordAnalysis, spoken, expected []string) scores {
	return scores{
		accuracy:      accuracyScore(analysis),
		pronunciation: pronunciationScore(analysis),
		fluency:       fluencyScore(spoken, expected),
		completeness:  completenessScore(spoken, expected),
	}
}

// accuracyScore is the mean similarity over expected-word entries.
func accuracyScore(analysis []WordAnalysis) float64 {
	var sum float64
	n := 0
	for _, wa := range analysis {
		if wa.Expected == "" {
			continue
		}
		sum += wa.Similarity
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// pronunciationScore credits correct words fully and discounts similar and
// incorrect ones.
func pronunciationScore(analysis []WordAnalysis) float64 {
	var sum float64
	n := 0
	for _, wa := range analysis {
		if wa.Expected == "" {
			continue
		}
		n++
		switch wa.Status {
		case StatusCorrect:
			sum += 100
		case StatusSimilar:
			sum += wa.Similarity * 0.8
		case StatusIncorrect:
			sum += wa.Similarity * 0.5
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// fluencyScore combines how close the attempt's length is to the reference
// (40%) with how much of the reference word order it preserves (60%).
// Nothing spoken, or nothing expected, scores 0. The empty-attempt case is
// intentionally 0 rather than the 20 the length term alone would give.
func fluencyScore(spoken, expected []string) float64 {
	if len(expected) == 0 || len(spoken) == 0 {
		return 0
	}

	ratio := float64(len(spoken)) / float64(len(expected))
	lengthScore := 100.0
	if ratio < minLengthRatio || ratio > maxLengthRatio {
		lengthScore = math.Max(0, 100-math.Abs(1-ratio)*50)
	}

	orderScore := float64(similarLCS(spoken, expected)) / float64(len(expected)) * 100

	return lengthScore*0.4 + orderScore*0.6
}

// similarLCS is the length of the longest common subsequence of a and b,
// where two words are equal when their similarity reaches the equivalence
// threshold.
func similarLCS(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if WordSimilarity(a[i-1], b[j-1]) >= equivalenceThreshold {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// completenessScore is the percentage of expected words that have at least
// one equivalent word anywhere in the attempt.
func completenessScore(spoken, expected []string) float64 {
	if len(expected) == 0 {
		return 0
	}
	found := 0
	for _, want := range expected {
		for _, got := range spoken {
			if WordSimilarity(got, want) >= equivalenceThreshold {
				found++
				break
			}
		}
	}
	return float64(found) / float64(len(expected)) * 100
}
