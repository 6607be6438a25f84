// Package text splits narration input into sentences.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultTerminators ends a sentence. Full-width marks split without
	// trailing whitespace since CJK text does not separate sentences with spaces.
	DefaultTerminators = ".!?。！？"

	closers = `"')]}»”’」』）`
)

// DefaultAbbreviations never end a sentence
var DefaultAbbreviations = []string{"Mr.", "Mrs.", "Ms.", "Dr.", "Prof.", "Sr.", "Jr.", "St.", "vs.", "etc.", "e.g.", "i.e."}

// Rules configures sentence boundary detection
type Rules struct {
	Terminators   string
	Abbreviations []string
}

// DefaultRules returns the default boundary rules
func DefaultRules() Rules {
	return Rules{
		Terminators:   DefaultTerminators,
		Abbreviations: DefaultAbbreviations,
	}
}

// Splitter breaks text into sentences according to its rules
type Splitter struct {
	terminators   string
	abbreviations map[string]struct{}
}

// NewSplitter creates a splitter. Empty terminators fall back to the defaults.
func NewSplitter(rules Rules) *Splitter {
	terminators := rules.Terminators
	if terminators == "" {
		terminators = DefaultTerminators
	}
	abbreviations := make(map[string]struct{}, len(rules.Abbreviations))
	for _, a := range rules.Abbreviations {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			abbreviations[a] = struct{}{}
		}
	}
	return &Splitter{terminators: terminators, abbreviations: abbreviations}
}

// Split splits text with the default rules
func Split(text string) []string {
	return NewSplitter(DefaultRules()).Split(text)
}

// Split returns the trimmed, non-empty sentences of text in input order.
// Terminal punctuation, including runs like "?!" or "..." and any closing
// quotes or brackets after them, stays with its sentence. Trailing text with
// no terminator becomes the last sentence. An empty result means the input
// held no sentences.
func (s *Splitter) Split(text string) []string {
	runes := []rune(norm.NFC.String(text))

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !s.isTerminator(runes[i]) {
			continue
		}

		end := i + 1
		for end < len(runes) && s.isTerminator(runes[end]) {
			end++
		}
		for end < len(runes) && strings.ContainsRune(closers, runes[end]) {
			end++
		}

		if !s.isBoundary(runes, start, i, end) {
			i = end - 1
			continue
		}

		sentences = appendSentence(sentences, runes[start:end])
		start = end
		i = end - 1
	}
	if start < len(runes) {
		sentences = appendSentence(sentences, runes[start:])
	}
	return sentences
}

func (s *Splitter) isTerminator(r rune) bool {
	return strings.ContainsRune(s.terminators, r)
}

// isBoundary decides whether the terminator run runes[mark:end] closes the
// sentence that began at start.
func (s *Splitter) isBoundary(runes []rune, start, mark, end int) bool {
	// Full-width terminators always close a sentence.
	if runes[mark] > unicode.MaxASCII {
		return true
	}
	if end < len(runes) && !unicode.IsSpace(runes[end]) {
		return false
	}
	if runes[mark] == '.' && end == mark+1 && s.isAbbreviation(runes[start:end]) {
		return false
	}
	return true
}

func (s *Splitter) isAbbreviation(sentence []rune) bool {
	if len(s.abbreviations) == 0 {
		return false
	}
	fields := strings.Fields(string(sentence))
	if len(fields) == 0 {
		return false
	}
	_, ok := s.abbreviations[strings.ToLower(fields[len(fields)-1])]
	return ok
}

func appendSentence(sentences []string, runes []rune) []string {
	sentence := strings.TrimSpace(string(runes))
	if sentence == "" {
		return sentences
	}
	return append(sentences, sentence)
}
