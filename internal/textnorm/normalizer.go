// Package textnorm reduces free transaction text to a normalized token stream:
// lower-casing, word tokenization, token filtering, lemmatization and
// stemming.
package textnorm

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer is an immutable text normalizer. Construct it once and share it;
// Normalize holds no mutable state.
type Normalizer struct {
	lexicon Lexicon
}

// New returns a Normalizer using the given lexicon for lemmatization.
func New(lexicon Lexicon) *Normalizer {
	return &Normalizer{lexicon: lexicon}
}

// NewDefault returns a Normalizer backed by the embedded lexicon.
func NewDefault() (*Normalizer, error) {
	lex, err := DefaultLexicon()
	if err != nil {
		return nil, err
	}
	return New(lex), nil
}

// Normalize lower-cases text, tokenizes it, drops tokens that are not
// alphanumeric or are single non-digit characters, and reduces each remaining
// token to its lemma and then its stem. Order and duplicates are preserved.
func (n *Normalizer) Normalize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	lower := cases.Lower(language.Und).String(text)
	tokens := Tokenize(lower)

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !keepToken(tok) {
			continue
		}
		lemma := tok
		if n.lexicon != nil {
			lemma = n.lexicon.Lemma(tok)
		}
		out = append(out, english.Stem(lemma, true))
	}
	return out
}

// Tokenize splits text on whitespace and separates leading and trailing
// punctuation into tokens of their own. Punctuation inside a word (as in
// "amazon.com") keeps the word together.
func Tokenize(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(text) {
		runes := []rune(field)
		start, end := 0, len(runes)
		for start < end && isPunct(runes[start]) {
			tokens = append(tokens, string(runes[start]))
			start++
		}
		var trailing []string
		for end > start && isPunct(runes[end-1]) {
			trailing = append(trailing, string(runes[end-1]))
			end--
		}
		if start < end {
			tokens = append(tokens, string(runes[start:end]))
		}
		for i := len(trailing) - 1; i >= 0; i-- {
			tokens = append(tokens, trailing[i])
		}
	}
	return tokens
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// keepToken keeps alphanumeric tokens longer than one rune and all-digit
// tokens of any length.
func keepToken(tok string) bool {
	if tok == "" {
		return false
	}
	alnum, digits := true, true
	count := 0
	for _, r := range tok {
		count++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			alnum = false
		}
		if !unicode.IsDigit(r) {
			digits = false
		}
	}
	return (alnum && count > 1) || digits
}
