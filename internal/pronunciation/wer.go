package pronunciation

import "github.com/texttheater/golang-levenshtein/levenshtein"

// wordRuneBase is the first code point of Supplementary Private Use Area-A.
// Each distinct word is mapped onto one code point from there so that the
// word sequences can be diffed as rune strings.
const wordRuneBase = 0xF0000

var werOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// ErrorRate is a word-level error breakdown of a spoken attempt.
type ErrorRate struct {
	// Rate is (Substitutions + Insertions + Deletions) / ReferenceWords.
	// 0 is a perfect transcript; values above 1 are possible when many extra
	// words were spoken.
	Rate float64 `json:"rate"`

	Substitutions  int `json:"substitutions"`
	Insertions     int `json:"insertions"`
	Deletions      int `json:"deletions"`
	ReferenceWords int `json:"referenceWords"`
}

// WordErrorRate computes the classic word error rate of spokenText against
// expectedText after normalisation. Words must match exactly; unlike
// [Evaluate] no similarity credit is given.
//
// When both texts are empty the rate is 0. When only the reference is empty
// every spoken word is an insertion and the rate is reported as 1.
func WordErrorRate(spokenText, expectedText string) ErrorRate {
	spoken := Tokenize(spokenText)
	expected := Tokenize(expectedText)

	if len(expected) == 0 {
		if len(spoken) == 0 {
			return ErrorRate{}
		}
		return ErrorRate{Rate: 1, Insertions: len(spoken)}
	}

	ids := make(map[string]rune, len(expected)+len(spoken))
	ref := wordRunes(expected, ids)
	hyp := wordRunes(spoken, ids)

	res := ErrorRate{ReferenceWords: len(expected)}
	for _, op := range levenshtein.EditScriptForStrings(ref, hyp, werOptions) {
		switch op {
		case levenshtein.Sub:
			res.Substitutions++
		case levenshtein.Ins:
			res.Insertions++
		case levenshtein.Del:
			res.Deletions++
		}
	}
	res.Rate = float64(res.Substitutions+res.Insertions+res.Deletions) / float64(res.ReferenceWords)
	return res
}

// wordRunes encodes words as runes, assigning new code points from ids as
// unseen words appear.
func wordRunes(words []string, ids map[string]rune) []rune {
	out := make([]rune, len(words))
	for i, w := range words {
		id, ok := ids[w]
		if !ok {
			id = wordRuneBase + rune(len(ids))
			ids[w] = id
		}
		out[i] = id
	}
	return out
}
