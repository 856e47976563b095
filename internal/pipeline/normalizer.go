package pipeline

import (
	"strconv"
	"strings"
)

// Normalized is the output of transcript normalization.
type Normalized struct {
	// Text is the lower-cased, whitespace-collapsed transcript with
	// spelled-out small numbers converted to digits.
	Text string

	// UnitHint is "lbs", "kg", or empty when the transcript names a unit.
	UnitHint string

	// Effort is a descriptive effort word found in the transcript ("easy",
	// "moderate", "hard", "max"), empty when none. Passed through to the
	// oracle inside Text; recorded here for observability.
	Effort string

	// HasDigits reports whether the normalized text contains any digit.
	HasDigits bool
}

// numberWords maps spelled-out numbers to digits. Covers what speech-to-text
// engines commonly leave as words: zero through twenty and the tens.
var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

var unitWords = map[string]string{
	"lb": "lbs", "lbs": "lbs", "pound": "lbs", "pounds": "lbs",
	"kg": "kg", "kgs": "kg", "kilo": "kg", "kilos": "kg",
	"kilogram": "kg", "kilograms": "kg",
}

var effortWords = map[string]string{
	"easy": "easy", "light": "easy",
	"moderate": "moderate",
	"hard": "hard", "heavy": "hard", "tough": "hard",
	"max": "max", "maximal": "max",
}

// Normalize lower-cases and tokenizes a raw transcript, converts spelled-out
// small numbers to digits, and detects unit and effort hints. It never fails:
// if normalization would empty the text, the trimmed original is returned.
func Normalize(transcript string) Normalized {
	lower := strings.ToLower(strings.TrimSpace(transcript))

	var n Normalized
	words := strings.Fields(lower)
	out := make([]string, 0, len(words))
	for _, w := range words {
		trimmed := strings.Trim(w, ".,!?;:")
		if v, ok := numberWords[trimmed]; ok {
			out = append(out, strconv.Itoa(v))
			continue
		}
		if unit, ok := unitWords[trimmed]; ok && n.UnitHint == "" {
			n.UnitHint = unit
		}
		if effort, ok := effortWords[trimmed]; ok && n.Effort == "" {
			n.Effort = effort
		}
		out = append(out, w)
	}

	n.Text = strings.Join(out, " ")
	if n.Text == "" {
		n.Text = strings.TrimSpace(transcript)
	}
	n.HasDigits = strings.ContainsAny(n.Text, "0123456789")
	return n
}
