package datasets

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ContinuousFeatures lists the feature columns the standard scaler covers:
// unbounded continuous signals. Cyclical encodings and flags are already in
// [-1, 1] and are left untouched.
var ContinuousFeatures = []string{
	featDeltaMinutes,
	featTemperature, featWindSpeed, featPrecip, featHumidity,
	featRollMean, featRollStd,
}

// StandardScaler standardizes a fixed set of feature columns to zero mean and
// unit variance. Fit learns the statistics from the training partition only;
// Transform applies them verbatim to any partition and never re-fits.
type StandardScaler struct {
	cols   []int
	mean   []float64
	std    []float64
	fitted bool
}

// FitStandardScaler fits on the training partition over ContinuousFeatures.
func FitStandardScaler(train *Frame) (*StandardScaler, error) {
	s := &StandardScaler{}
	for _, name := range ContinuousFeatures {
		col := train.Col(name)
		if col < 0 {
			return nil, fmt.Errorf("feature %q not present in frame", name)
		}
		s.cols = append(s.cols, col)
	}
	if train.Len() == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty partition")
	}
	buf := make([]float64, train.Len())
	for _, col := range s.cols {
		for i, row := range train.Rows {
			buf[i] = float64(row[col])
		}
		mean, std := stat.MeanStdDev(buf, nil)
		s.mean = append(s.mean, mean)
		s.std = append(s.std, std)
	}
	s.fitted = true
	return s, nil
}

// Transform standardizes the frame's continuous columns in place using the
// fitted statistics. A zero-variance column is centered but not divided.
func (s *StandardScaler) Transform(frame *Frame) error {
	if !s.fitted {
		return fmt.Errorf("scaler not fitted")
	}
	for k, col := range s.cols {
		mean, std := s.mean[k], s.std[k]
		if std == 0 {
			std = 1
		}
		for _, row := range frame.Rows {
			row[col] = float32((float64(row[col]) - mean) / std)
		}
	}
	return nil
}

// Params returns copies of the fitted per-column means and stddevs.
func (s *StandardScaler) Params() (mean, std []float64) {
	return append([]float64(nil), s.mean...), append([]float64(nil), s.std...)
}

// MinMaxScaler maps the demand target into [0, 1] using the training
// partition's min and max. Fit once on train; Transform and Inverse reuse the
// fitted range verbatim.
type MinMaxScaler struct {
	min    float64
	max    float64
	fitted bool
}

// FitMinMaxScaler fits on the training partition's target values.
func FitMinMaxScaler(train *Frame) (*MinMaxScaler, error) {
	if train.Len() == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty partition")
	}
	s := &MinMaxScaler{min: float64(train.Target[0]), max: float64(train.Target[0])}
	for _, v := range train.Target {
		f := float64(v)
		if f < s.min {
			s.min = f
		}
		if f > s.max {
			s.max = f
		}
	}
	s.fitted = true
	return s, nil
}

// TransformTarget scales the frame's target column in place. A constant
// target (max == min) maps to 0 rather than dividing by zero.
func (s *MinMaxScaler) TransformTarget(frame *Frame) error {
	if !s.fitted {
		return fmt.Errorf("scaler not fitted")
	}
	span := s.max - s.min
	for i, v := range frame.Target {
		if span == 0 {
			frame.Target[i] = 0
			continue
		}
		frame.Target[i] = float32((float64(v) - s.min) / span)
	}
	return nil
}

// Inverse maps a scaled value back to demand units.
func (s *MinMaxScaler) Inverse(v float32) float32 {
	return float32(float64(v)*(s.max-s.min) + s.min)
}

// InverseSlice applies Inverse elementwise into a new slice.
func (s *MinMaxScaler) InverseSlice(vs []float32) []float32 {
	out := make([]float32, len(vs))
	for i, v := range vs {
		out[i] = s.Inverse(v)
	}
	return out
}

// Params returns the fitted min and max.
func (s *MinMaxScaler) Params() (min, max float64) { return s.min, s.max }
