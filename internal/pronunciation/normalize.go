package pronunciation

import "strings"

// strippedPunctuation lists the characters removed during normalisation.
const strippedPunctuation = `.,!?;:'"()[]{}`

// Normalize lower-cases text, removes punctuation and collapses runs of
// whitespace into single spaces. The result carries no leading or trailing
// whitespace.
func Normalize(text string) string {
	return strings.Join(Tokenize(text), " ")
}

// Tokenize normalises text and splits it into word tokens. Empty and
// whitespace-only input yields an empty (nil) slice.
func Tokenize(text string) []string {
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(strippedPunctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(text))
	return strings.Fields(stripped)
}
