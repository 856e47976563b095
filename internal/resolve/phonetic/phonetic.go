// Package phonetic implements the phonetic code used by the resolver's second
// matching tier. The encoding is Soundex-style: the first letter is retained,
// remaining consonants are bucketed into digit classes, vowels and H/W/Y are
// dropped, adjacent duplicate digits are collapsed, and the result is padded
// or truncated to a fixed length.
//
// The tier exists to absorb speech-recognition substitution errors — "binch"
// and "bench" encode identically — so the encoding is deliberately coarse.
// Multi-word names are encoded per word and joined, which keeps "bench press"
// distinguishable from "back squat" while still collapsing vowel confusions.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// CodeLength is the fixed length of a single-word phonetic code.
const CodeLength = 4

// digitFor maps a consonant to its Soundex digit class. Vowels, H, W, and Y
// return 0, meaning "dropped".
func digitFor(r rune) byte {
	switch r {
	case 'b', 'f', 'p', 'v':
		return '1'
	case 'c', 'g', 'j', 'k', 'q', 's', 'x', 'z':
		return '2'
	case 'd', 't':
		return '3'
	case 'l':
		return '4'
	case 'm', 'n':
		return '5'
	case 'r':
		return '6'
	}
	return 0
}

// Encode returns the fixed-length phonetic code for a single word.
// Non-letter runes are ignored. The empty string encodes to the empty string.
func Encode(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))

	var letters []rune
	for _, r := range word {
		if r >= 'a' && r <= 'z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	code := make([]byte, 0, CodeLength)
	code = append(code, byte(letters[0]-'a'+'A'))

	// lastDigit tracks the previous emitted (or dropped) class so adjacent
	// duplicates collapse, including a duplicate of the first letter's class.
	lastDigit := digitFor(letters[0])

	for _, r := range letters[1:] {
		d := digitFor(r)
		if d == 0 {
			lastDigit = 0
			continue
		}
		if d == lastDigit {
			continue
		}
		code = append(code, d)
		lastDigit = d
		if len(code) == CodeLength {
			break
		}
	}

	for len(code) < CodeLength {
		code = append(code, '0')
	}
	return string(code)
}

// EncodePhrase returns the phonetic code for a whole name: each word is
// encoded and the codes are joined with a single space. Hyphens count as
// word separators so "Pull-Up" and "pull up" share a code. "bench press"
// and "binch press" produce the same phrase code.
func EncodePhrase(s string) string {
	fields := strings.Fields(strings.ReplaceAll(s, "-", " "))
	if len(fields) == 0 {
		return ""
	}
	codes := make([]string, 0, len(fields))
	for _, f := range fields {
		if c := Encode(f); c != "" {
			codes = append(codes, c)
		}
	}
	return strings.Join(codes, " ")
}

// Similarity returns the Jaro-Winkler similarity of two strings,
// case-insensitive. Used to rank candidates whose phonetic codes collide.
func Similarity(a, b string) float64 {
	return matchr.JaroWinkler(strings.ToLower(a), strings.ToLower(b), false)
}
