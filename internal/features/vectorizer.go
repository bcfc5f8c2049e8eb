// Package features turns transaction records into the fixed-length numeric
// vectors the classifier consumes.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"fjacquet/autocat/internal/textnorm"
)

// Default vectorizer settings.
const (
	DefaultNgramMin    = 2
	DefaultNgramMax    = 7
	DefaultMaxFeatures = 10000
)

// ErrEmptyVocabulary is returned by Fit when the corpus yields no n-gram.
var ErrEmptyVocabulary = errors.New("empty vocabulary: training documents contain no usable text")

// VectorizerOptions configures a TfidfVectorizer before fitting.
type VectorizerOptions struct {
	NgramMin    int
	NgramMax    int
	MaxFeatures int
}

// DefaultVectorizerOptions returns character n-grams of 2 to 7 runes capped
// at 10,000 terms.
func DefaultVectorizerOptions() VectorizerOptions {
	return VectorizerOptions{
		NgramMin:    DefaultNgramMin,
		NgramMax:    DefaultNgramMax,
		MaxFeatures: DefaultMaxFeatures,
	}
}

func (o VectorizerOptions) validate() error {
	if o.NgramMin < 1 || o.NgramMax < o.NgramMin {
		return fmt.Errorf("invalid n-gram range [%d, %d]", o.NgramMin, o.NgramMax)
	}
	if o.MaxFeatures < 0 {
		return fmt.Errorf("max features must not be negative, got %d", o.MaxFeatures)
	}
	return nil
}

// VectorizerState is the serializable form of a fitted TfidfVectorizer.
type VectorizerState struct {
	NgramMin    int       `json:"ngram_min"`
	NgramMax    int       `json:"ngram_max"`
	MaxFeatures int       `json:"max_features"`
	Terms       []string  `json:"terms"`
	IDF         []float64 `json:"idf"`
}

// TfidfVectorizer maps text to TF-IDF weights of character n-grams built
// within word boundaries of the normalized token stream. Once fitted the
// vocabulary is frozen; its sorted term list is the column order.
type TfidfVectorizer struct {
	normalizer *textnorm.Normalizer
	opts       VectorizerOptions
	terms      []string
	idf        []float64
	index      map[string]int
}

// NewTfidfVectorizer returns an unfitted vectorizer.
func NewTfidfVectorizer(normalizer *textnorm.Normalizer, opts VectorizerOptions) (*TfidfVectorizer, error) {
	if normalizer == nil {
		return nil, errors.New("vectorizer requires a text normalizer")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &TfidfVectorizer{normalizer: normalizer, opts: opts}, nil
}

// RestoreTfidfVectorizer rebuilds a fitted vectorizer from its state.
func RestoreTfidfVectorizer(normalizer *textnorm.Normalizer, state VectorizerState) (*TfidfVectorizer, error) {
	v, err := NewTfidfVectorizer(normalizer, VectorizerOptions{
		NgramMin:    state.NgramMin,
		NgramMax:    state.NgramMax,
		MaxFeatures: state.MaxFeatures,
	})
	if err != nil {
		return nil, err
	}
	if len(state.Terms) == 0 {
		return nil, ErrEmptyVocabulary
	}
	if len(state.Terms) != len(state.IDF) {
		return nil, fmt.Errorf("vectorizer state has %d terms but %d idf weights", len(state.Terms), len(state.IDF))
	}
	if !sort.StringsAreSorted(state.Terms) {
		return nil, errors.New("vectorizer terms are not in sorted order")
	}
	v.setVocabulary(append([]string(nil), state.Terms...), append([]float64(nil), state.IDF...))
	return v, nil
}

// State returns a copy of the fitted state for persistence.
func (v *TfidfVectorizer) State() VectorizerState {
	return VectorizerState{
		NgramMin:    v.opts.NgramMin,
		NgramMax:    v.opts.NgramMax,
		MaxFeatures: v.opts.MaxFeatures,
		Terms:       v.Terms(),
		IDF:         append([]float64(nil), v.idf...),
	}
}

// Fitted reports whether Fit (or a restore) has set the vocabulary.
func (v *TfidfVectorizer) Fitted() bool {
	return v.index != nil
}

// NumFeatures is the number of output columns.
func (v *TfidfVectorizer) NumFeatures() int {
	return len(v.terms)
}

// Terms returns the vocabulary in column order.
func (v *TfidfVectorizer) Terms() []string {
	return append([]string(nil), v.terms...)
}

// Analyze returns the n-grams of text in emission order, duplicates kept.
func (v *TfidfVectorizer) Analyze(text string) []string {
	tokens := v.normalizer.Normalize(text)
	var grams []string
	for _, tok := range tokens {
		grams = appendWordNgrams(grams, tok, v.opts.NgramMin, v.opts.NgramMax)
	}
	return grams
}

// appendWordNgrams pads word with one space on each side and emits every
// n-gram for n in [min, max]. A padded word shorter than n is emitted once,
// whole, and stops the loop.
func appendWordNgrams(dst []string, word string, min, max int) []string {
	w := []rune(" " + word + " ")
	for n := min; n <= max; n++ {
		if len(w) <= n {
			dst = append(dst, string(w))
			break
		}
		for i := 0; i+n <= len(w); i++ {
			dst = append(dst, string(w[i:i+n]))
		}
	}
	return dst
}

// Fit learns the vocabulary and inverse document frequencies from docs.
func (v *TfidfVectorizer) Fit(docs []string) error {
	termFreq := make(map[string]int)
	docFreq := make(map[string]int)

	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, g := range v.Analyze(doc) {
			termFreq[g]++
			if _, ok := seen[g]; !ok {
				seen[g] = struct{}{}
				docFreq[g]++
			}
		}
	}
	if len(termFreq) == 0 {
		return ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(termFreq))
	for t := range termFreq {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	if v.opts.MaxFeatures > 0 && len(terms) > v.opts.MaxFeatures {
		// Most frequent first; the stable sort keeps lexical order among ties.
		sort.SliceStable(terms, func(i, j int) bool {
			return termFreq[terms[i]] > termFreq[terms[j]]
		})
		terms = terms[:v.opts.MaxFeatures]
		sort.Strings(terms)
	}

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, t := range terms {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[t]))) + 1
	}

	v.setVocabulary(terms, idf)
	return nil
}

func (v *TfidfVectorizer) setVocabulary(terms []string, idf []float64) {
	v.terms = terms
	v.idf = idf
	v.index = make(map[string]int, len(terms))
	for i, t := range terms {
		v.index[t] = i
	}
}

// Transform returns the L2-normalized TF-IDF row for text. N-grams outside
// the vocabulary contribute nothing; text with no known n-gram yields a zero
// row.
func (v *TfidfVectorizer) Transform(text string) ([]float64, error) {
	if !v.Fitted() {
		return nil, errors.New("vectorizer is not fitted")
	}

	row := make([]float64, len(v.terms))
	for _, g := range v.Analyze(text) {
		if i, ok := v.index[g]; ok {
			row[i]++
		}
	}

	var norm float64
	for i, count := range row {
		if count == 0 {
			continue
		}
		row[i] = count * v.idf[i]
		norm += row[i] * row[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range row {
			row[i] /= norm
		}
	}
	return row, nil
}

// String describes the vectorizer for logs.
func (v *TfidfVectorizer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tfidf(char_wb %d-%d", v.opts.NgramMin, v.opts.NgramMax)
	if v.Fitted() {
		fmt.Fprintf(&b, ", %d terms", len(v.terms))
	}
	b.WriteString(")")
	return b.String()
}
