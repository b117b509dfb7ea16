package pronunciation

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Blend weights of the three similarity signals.
const (
	editWeight     = 0.5
	phoneticWeight = 0.3
	overlapWeight  = 0.2
)

// phoneticCodeLen is the fixed length of a [PhoneticCode].
const phoneticCodeLen = 4

// soundexDigits maps consonant classes to their code digit. Vowels and
// h, w, y carry no digit.
var soundexDigits = map[rune]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// WordSimilarity scores how alike two normalised words are, in [0, 100].
// Identical words score 100. Otherwise the score blends edit-distance
// similarity (50%), phonetic-code similarity (30%) and character-set overlap
// (20%).
func WordSimilarity(a, b string) float64 {
	if a == b {
		return 100
	}
	return editSimilarity(a, b)*editWeight +
		phoneticSimilarity(a, b)*phoneticWeight +
		overlapSimilarity(a, b)*overlapWeight
}

// editSimilarity converts the Levenshtein distance between a and b into a
// percentage of the longer word's length.
func editSimilarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 100
	}
	d := matchr.Levenshtein(a, b)
	return float64(maxLen-d) / float64(maxLen) * 100
}

// phoneticSimilarity compares the simplified Soundex codes of a and b
// position by position.
func phoneticSimilarity(a, b string) float64 {
	codeA, codeB := PhoneticCode(a), PhoneticCode(b)
	if codeA == codeB {
		return 100
	}
	ca, cb := []rune(codeA), []rune(codeB)
	longest := max(len(ca), len(cb))
	if longest == 0 {
		return 100
	}
	equal := 0
	for i := 0; i < min(len(ca), len(cb)); i++ {
		if ca[i] == cb[i] {
			equal++
		}
	}
	return float64(equal) / float64(longest) * 100
}

// overlapSimilarity is the share of distinct characters the two words have
// in common, relative to the larger character set.
func overlapSimilarity(a, b string) float64 {
	setA := runeSet(a)
	setB := runeSet(b)
	larger := max(len(setA), len(setB))
	if larger == 0 {
		return 0
	}
	shared := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			shared++
		}
	}
	return float64(shared) / float64(larger) * 100
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

// PhoneticCode returns the four-character simplified Soundex code of word.
//
// The first letter is kept verbatim. Each following consonant contributes its
// class digit unless that digit equals the previously appended one; vowels
// and h, w, y contribute nothing. The code is cut at four characters and
// right-padded with '0'. This is deliberately cruder than standard Soundex
// (there is no h/w separator rule) and is not tuned for non-English
// phonetics. An empty word yields an empty code.
func PhoneticCode(word string) string {
	first, size := utf8.DecodeRuneInString(word)
	if size == 0 {
		return ""
	}

	code := make([]byte, 0, phoneticCodeLen+utf8.UTFMax)
	code = utf8.AppendRune(code, first)
	digits := 1
	var last byte
	for _, r := range word[size:] {
		if digits >= phoneticCodeLen {
			break
		}
		d, ok := soundexDigits[r]
		if !ok || d == last {
			continue
		}
		code = append(code, d)
		last = d
		digits++
	}
	for ; digits < phoneticCodeLen; digits++ {
		code = append(code, '0')
	}
	return string(code)
}

// MetaphoneMatch reports whether the Double Metaphone encodings of a and b
// share a primary or secondary code. It is a coarser "sounds alike" signal
// than [WordSimilarity] and does not influence scoring.
func MetaphoneMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	pa, sa := matchr.DoubleMetaphone(a)
	pb, sb := matchr.DoubleMetaphone(b)
	for _, x := range []string{pa, sa} {
		if x == "" {
			continue
		}
		if x == pb || x == sb {
			return true
		}
	}
	return false
}
