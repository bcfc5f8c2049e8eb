package features

import (
	"errors"
	"sort"

	"fjacquet/autocat/internal/pipelineerror"
)

// LabelEncoder maps a categorical value to its index in the sorted list of
// values seen at fit time.
type LabelEncoder struct {
	Name    string   `json:"name"`
	Classes []string `json:"classes"`
}

// FitLabelEncoder collects the distinct values, sorted.
func FitLabelEncoder(name string, values []string) (*LabelEncoder, error) {
	if len(values) == 0 {
		return nil, errors.New("label encoder needs at least one value")
	}
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return &LabelEncoder{Name: name, Classes: classes}, nil
}

// Validate checks a restored encoder.
func (e *LabelEncoder) Validate() error {
	if len(e.Classes) == 0 {
		return errors.New("label encoder has no classes")
	}
	for i := 1; i < len(e.Classes); i++ {
		if e.Classes[i-1] >= e.Classes[i] {
			return errors.New("label encoder classes are not sorted and unique")
		}
	}
	return nil
}

// Encode returns the code of value.
func (e *LabelEncoder) Encode(value string) (int, error) {
	i := sort.SearchStrings(e.Classes, value)
	if i < len(e.Classes) && e.Classes[i] == value {
		return i, nil
	}
	return 0, &pipelineerror.UnknownCategoricalValueError{Encoder: e.Name, Value: value}
}

// Decode returns the value for code.
func (e *LabelEncoder) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.Classes) {
		return "", false
	}
	return e.Classes[code], true
}
