package pronunciation

import (
	"strconv"
	"strings"
)

// Suggestion triggers, compared against the rounded sub-scores the learner
// sees.
const (
	accuracyHintBelow      = 70.0
	pronunciationHintBelow = 70.0
	fluencyHintBelow       = 70.0
	completenessHintBelow  = 80.0

	// maxFocusWords is the largest number of weak words listed by name.
	maxFocusWords = 3
)

// buildFeedback renders the lead sentence for the overall band followed by
// an optional bulleted suggestions block.
func buildFeedback(overall float64, s scores, analysis []WordAnalysis) string {
	var b strings.Builder
	b.WriteString(leadSentence(overall))

	var tips []string
	if s.accuracy < accuracyHintBelow {
		tips = append(tips, "Focus on saying each word clearly so it matches the text.")
	}
	if s.pronunciation < pronunciationHintBelow {
		tips = append(tips, "Listen to the reference audio and imitate the sounds of each word.")
	}
	if s.fluency < fluencyHintBelow {
		tips = append(tips, "Try to speak at a steady pace and keep the words in their original order.")
	}
	if s.completeness < completenessHintBelow {
		tips = append(tips, "Make sure you say every word of the sentence.")
	}
	if weak := weakWords(analysis); len(weak) >= 1 && len(weak) <= maxFocusWords {
		quoted := make([]string, len(weak))
		for i, w := range weak {
			quoted[i] = strconv.Quote(w)
		}
		tips = append(tips, "Focus on these words: "+strings.Join(quoted, ", ")+".")
	}

	if len(tips) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, tip := range tips {
			b.WriteString("\n- ")
			b.WriteString(tip)
		}
	}
	return b.String()
}

func leadSentence(overall float64) string {
	switch {
	case overall >= excellentThreshold:
		return "Excellent! Your pronunciation is clear and matches the sentence very well."
	case overall >= goodThreshold:
		return "Good job! Your speech is easy to understand, with a few small issues."
	case overall >= fairThreshold:
		return "Fair attempt. Several words need more practice."
	default:
		return "Keep practicing. Try speaking more slowly and clearly."
	}
}

// weakWords returns the expected words that were matched but not
// pronounced correctly, in sentence order.
func weakWords(analysis []WordAnalysis) []string {
	var words []string
	for _, wa := range analysis {
		if wa.Status == StatusSimilar || wa.Status == StatusIncorrect {
			words = append(words, wa.Expected)
		}
	}
	return words
}
