// Package moderation masks banned vocabulary in outgoing messages.
// Matching runs over a normalized view of the text (lowercase, leet speak
// folded, punctuation stripped) while replacement happens on the original
// runes, so spacing and casing around a hit are preserved.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Censor struct {
	machine     *goahocorasick.Machine
	replacement rune
}

// leetFold maps common evasion characters back to the letters they stand for.
var leetFold = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// NewCensor builds the Aho-Corasick automaton over the normalized word list.
func NewCensor(bannedWords []string, replacement rune) (*Censor, error) {
	patterns := make([][]rune, 0, len(bannedWords))
	for _, word := range bannedWords {
		if norm, _ := normalize([]rune(word)); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}
	if len(patterns) == 0 {
		// no dictionary configured, Apply passes everything through
		return &Censor{replacement: replacement}, nil
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{machine: machine, replacement: replacement}, nil
}

// Apply returns the text with every banned span masked, and whether anything
// was masked at all.
func (c *Censor) Apply(text string) (string, bool) {
	if c.machine == nil {
		return text, false
	}
	original := []rune(text)
	normalized, origIdx := normalize(original)
	if len(normalized) == 0 {
		return text, false
	}

	spans := c.machine.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return text, false
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			original[i] = c.replacement
		}
	}
	return string(original), true
}

// normalize lowercases, folds leet speak and drops noise runes, keeping a
// mapping from each normalized position back to the original rune index.
func normalize(input []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		if folded, ok := leetFold[r]; ok {
			r = folded
		} else if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}
