package textnorm

import (
	_ "embed"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconData []byte

// Lexicon maps a lower-cased word to its dictionary base form. Implementations
// must be safe for concurrent reads and must not change after construction.
type Lexicon interface {
	Lemma(word string) string
}

type lexiconFile struct {
	MinLength int               `yaml:"min_length"`
	Irregular map[string]string `yaml:"irregular"`
	Invariant []string          `yaml:"invariant"`
}

// NounLexicon singularizes English nouns with the inflection rule set.
// Words listed as irregular or invariant override those rules, and words
// shorter than MinLength runes are kept as they are.
type NounLexicon struct {
	minLength int
	irregular map[string]string
	invariant map[string]struct{}
}

// ParseLexicon builds a NounLexicon from its YAML overrides.
func ParseLexicon(data []byte) (*NounLexicon, error) {
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing lexicon: %w", err)
	}
	if f.MinLength < 0 {
		return nil, fmt.Errorf("lexicon min_length must not be negative, got %d", f.MinLength)
	}

	lex := &NounLexicon{
		minLength: f.MinLength,
		irregular: make(map[string]string, len(f.Irregular)),
		invariant: make(map[string]struct{}, len(f.Invariant)),
	}
	for form, base := range f.Irregular {
		lex.irregular[strings.ToLower(form)] = strings.ToLower(base)
	}
	for _, w := range f.Invariant {
		lex.invariant[strings.ToLower(w)] = struct{}{}
	}
	return lex, nil
}

// DefaultLexicon returns the lexicon with the embedded English overrides.
func DefaultLexicon() (*NounLexicon, error) {
	return ParseLexicon(defaultLexiconData)
}

// Lemma returns the singular form of word. Words containing digits are
// returned unchanged.
func (l *NounLexicon) Lemma(word string) string {
	if base, ok := l.irregular[word]; ok {
		return base
	}
	if _, ok := l.invariant[word]; ok {
		return word
	}
	if utf8.RuneCountInString(word) < l.minLength || strings.IndexFunc(word, unicode.IsDigit) >= 0 {
		return word
	}
	// the package-level rule set is only read here, never extended
	return inflection.Singular(word)
}
