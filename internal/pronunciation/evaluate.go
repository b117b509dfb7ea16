// Package pronunciation scores a transcribed spoken attempt against the
// sentence the learner was asked to say.
//
// Evaluation is purely textual: the spoken input is already the output of a
// speech-to-text provider. The evaluator proceeds in five stages:
//
//  1. Normalisation: both texts are lower-cased, stripped of punctuation and
//     split into word tokens ([Tokenize]).
//  2. Word similarity: every pair of words is scored in [0, 100] by blending
//     edit distance, a simplified Soundex code and character-set overlap
//     ([WordSimilarity]).
//  3. Alignment: each expected word greedily claims the best unconsumed
//     spoken word. Unclaimed spoken words are reported as extras.
//  4. Scoring: accuracy, pronunciation, fluency and completeness sub-scores
//     are derived from the alignment and blended into an overall score that
//     selects a [Level].
//  5. Feedback: a short human-readable summary with targeted suggestions.
//
// The alignment is greedy rather than globally optimal. When several
// expected words are mutually similar a spoken word can be claimed by the
// wrong one; existing scores depend on this behaviour.
//
// All functions are pure and safe for concurrent use.
package pronunciation

import "math"

// Status classifies a single [WordAnalysis] entry.
type Status string

const (
	StatusCorrect   Status = "correct"
	StatusSimilar   Status = "similar"
	StatusIncorrect Status = "incorrect"
	StatusMissing   Status = "missing"
	StatusExtra     Status = "extra"
)

// Level is the overall performance band of an [Evaluation].
type Level string

const (
	LevelExcellent Level = "excellent"
	LevelGood      Level = "good"
	LevelFair      Level = "fair"
	LevelPoor      Level = "poor"
)

// Scoring cut points. The evaluation semantics are defined by these exact
// values.
const (
	// matchFloor is the similarity a spoken word must exceed to be aligned
	// with an expected word at all.
	matchFloor = 30.0

	// equivalenceThreshold is the similarity at which two words count as the
	// same word for completeness and word-order purposes.
	equivalenceThreshold = 70.0

	correctThreshold = 90.0
	similarThreshold = 60.0

	excellentThreshold = 85.0
	goodThreshold      = 70.0
	fairThreshold      = 50.0
)

// WordAnalysis describes how one expected word, or one extra spoken word,
// was matched.
type WordAnalysis struct {
	// Expected is the reference word. Empty for [StatusExtra] entries.
	Expected string `json:"expected"`

	// Spoken is the aligned spoken word. Empty for [StatusMissing] entries.
	Spoken string `json:"spoken"`

	Status Status `json:"status"`

	// Similarity is the combined word similarity in [0, 100] that produced
	// Status. Always 0 for missing and extra entries.
	Similarity float64 `json:"similarity"`
}

// Evaluation is the result of [Evaluate].
type Evaluation struct {
	Accuracy      float64 `json:"accuracy"`
	Pronunciation float64 `json:"pronunciation"`
	Fluency       float64 `json:"fluency"`
	Completeness  float64 `json:"completeness"`

	// WordAnalysis holds one entry per expected word in sentence order,
	// followed by one entry per unconsumed spoken word in spoken order.
	WordAnalysis []WordAnalysis `json:"wordAnalysis"`

	Feedback string `json:"feedback"`
	Level    Level  `json:"level"`
}

// Evaluate scores spokenText against expectedText.
//
// Evaluate never fails: empty or whitespace-only inputs produce zero
// sub-scores and a [LevelPoor] evaluation. The four sub-scores are rounded to
// the nearest integer; the level is chosen from the unrounded overall score.
func Evaluate(spokenText, expectedText string) Evaluation {
	spoken := Tokenize(spokenText)
	expected := Tokenize(expectedText)

	analysis := align(spoken, expected)
	s := computeScores(analysis, spoken, expected)

	overall := s.overall()
	rounded := s.rounded()

	return Evaluation{
		Accuracy:      rounded.accuracy,
		Pronunciation: rounded.pronunciation,
		Fluency:       rounded.fluency,
		Completeness:  rounded.completeness,
		WordAnalysis:  analysis,
		Feedback:      buildFeedback(overall, rounded, analysis),
		Level:         levelFor(overall),
	}
}

// levelFor maps an overall score to its performance band.
func levelFor(overall float64) Level {
	switch {
	case overall >= excellentThreshold:
		return LevelExcellent
	case overall >= goodThreshold:
		return LevelGood
	case overall >= fairThreshold:
		return LevelFair
	default:
		return LevelPoor
	}
}

// round rounds half away from zero. All scores are non-negative so this is
// the conventional "nearest integer" rounding.
func round(v float64) float64 {
	return math.Round(v)
}
