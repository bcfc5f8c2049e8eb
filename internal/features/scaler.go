package features

import (
	"errors"
	"math"
)

// StandardScaler z-scores a single numeric column with the population mean
// and standard deviation seen at fit time.
type StandardScaler struct {
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// FitStandardScaler computes mean and population standard deviation. A
// constant column gets scale 1 so that Transform only centers it.
func FitStandardScaler(values []float64) (*StandardScaler, error) {
	if len(values) == 0 {
		return nil, errors.New("scaler needs at least one value")
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(values)))
	if std == 0 {
		std = 1
	}
	return &StandardScaler{Mean: mean, Scale: std}, nil
}

// Validate checks a restored scaler.
func (s *StandardScaler) Validate() error {
	if math.IsNaN(s.Mean) || math.IsInf(s.Mean, 0) {
		return errors.New("scaler mean is not finite")
	}
	if !(s.Scale > 0) || math.IsInf(s.Scale, 0) {
		return errors.New("scaler scale must be positive and finite")
	}
	return nil
}

// Transform returns (v - mean) / scale.
func (s *StandardScaler) Transform(v float64) float64 {
	return (v - s.Mean) / s.Scale
}
