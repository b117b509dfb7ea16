package history

import (
	"math"
	"sort"

	"github.com/MrWong99/speakcoach/internal/pronunciation"
)

// maxMissedWords caps [Summary.MissedWords].
const maxMissedWords = 5

// ModeStats holds average sub-scores over the attempts of one mode.
type ModeStats struct {
	Attempts      int     `json:"attempts"`
	Accuracy      float64 `json:"accuracy"`
	Pronunciation float64 `json:"pronunciation"`
	Fluency       float64 `json:"fluency"`
	Completeness  float64 `json:"completeness"`
	ErrorRate     float64 `json:"errorRate"`
}

// WordCount is an expected word and how often it was missed.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Summary aggregates a learner's records.
type Summary struct {
	Attempts    int                         `json:"attempts"`
	ByMode      map[Mode]ModeStats          `json:"byMode"`
	Levels      map[pronunciation.Level]int `json:"levels"`
	BestLevel   pronunciation.Level         `json:"bestLevel,omitempty"`
	MissedWords []WordCount                 `json:"missedWords"`
}

// Summarize aggregates records. A word counts as missed each time it was
// reported missing or incorrect; similar words do not count. MissedWords
// holds the most frequent ones, ties broken alphabetically.
func Summarize(records []Record) Summary {
	sum := Summary{
		Attempts:    len(records),
		ByMode:      make(map[Mode]ModeStats),
		Levels:      make(map[pronunciation.Level]int),
		MissedWords: []WordCount{},
	}

	missed := make(map[string]int)
	best := -1
	for _, r := range records {
		ev := r.Evaluation
		ms := sum.ByMode[r.Mode]
		ms.Attempts++
		ms.Accuracy += ev.Accuracy
		ms.Pronunciation += ev.Pronunciation
		ms.Fluency += ev.Fluency
		ms.Completeness += ev.Completeness
		ms.ErrorRate += r.ErrorRate.Rate
		sum.ByMode[r.Mode] = ms

		sum.Levels[ev.Level]++
		if rank := levelRank(ev.Level); rank > best {
			best = rank
			sum.BestLevel = ev.Level
		}

		for _, wa := range ev.WordAnalysis {
			if wa.Expected == "" {
				continue
			}
			if wa.Status == pronunciation.StatusMissing || wa.Status == pronunciation.StatusIncorrect {
				missed[wa.Expected]++
			}
		}
	}

	for mode, ms := range sum.ByMode {
		n := float64(ms.Attempts)
		ms.Accuracy = round1(ms.Accuracy / n)
		ms.Pronunciation = round1(ms.Pronunciation / n)
		ms.Fluency = round1(ms.Fluency / n)
		ms.Completeness = round1(ms.Completeness / n)
		ms.ErrorRate = math.Round(ms.ErrorRate/n*1000) / 1000
		sum.ByMode[mode] = ms
	}

	for w, c := range missed {
		sum.MissedWords = append(sum.MissedWords, WordCount{Word: w, Count: c})
	}
	sort.Slice(sum.MissedWords, func(i, j int) bool {
		a, b := sum.MissedWords[i], sum.MissedWords[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Word < b.Word
	})
	if len(sum.MissedWords) > maxMissedWords {
		sum.MissedWords = sum.MissedWords[:maxMissedWords]
	}
	return sum
}

func levelRank(l pronunciation.Level) int {
	switch l {
	case pronunciation.LevelPoor:
		return 0
	case pronunciation.LevelFair:
		return 1
	case pronunciation.LevelGood:
		return 2
	case pronunciation.LevelExcellent:
		return 3
	default:
		return -1
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
