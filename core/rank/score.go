package rank

import (
	"fmt"
	"math"
)

// Score is an optional finite score. Pipeline stages that cannot produce a
// value return a missing Score rather than zero, since zero is itself a
// meaningful score for every component.
type Score struct {
	value float64
	valid bool
}

// Missing returns the explicit missing-score marker.
func Missing() Score {
	return Score{}
}

// New returns a valid Score holding v.
// It returns an error if v is NaN or infinite.
func New(v float64) (Score, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Score{}, fmt.Errorf("score must be finite, got %v", v)
	}
	return Score{value: v, valid: true}, nil
}

// MustNew is New for values already known to be finite. It panics otherwise
// and is intended for tests and literals.
func MustNew(v float64) Score {
	s, err := New(v)
	if err != nil {
		panic(err)
	}
	return s
}

// Value returns the score value and whether it is present.
func (s Score) Value() (float64, bool) {
	return s.value, s.valid
}

// Valid reports whether the score carries a value.
func (s Score) Valid() bool {
	return s.valid
}

// Or returns the score value if present, otherwise fallback.
func (s Score) Or(fallback float64) float64 {
	if s.valid {
		return s.value
	}
	return fallback
}

func (s Score) String() string {
	if !s.valid {
		return "missing"
	}
	return fmt.Sprintf("%g", s.value)
}

// MarshalJSON encodes a missing score as null so a consumer can never
// mistake it for zero.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%g", s.value)), nil
}

// UnmarshalJSON decodes null as missing and any finite number as valid.
func (s *Score) UnmarshalJSON(data []byte) error {
	text := string(data)
	if text == "null" {
		*s = Missing()
		return nil
	}
	var v float64
	if _, err := fmt.Sscanf(text, "%g", &v); err != nil {
		return fmt.Errorf("parse score %q: %w", text, err)
	}
	parsed, err := New(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
