// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package credit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRatio is returned when a ratio string cannot be parsed.
var ErrInvalidRatio = errors.New("invalid ratio")

// Ratio is an exact rational multiplier. Margin policy is expressed as
// ratios rather than floats so that charge arithmetic stays exact.
type Ratio struct {
	Num int64
	Den int64
}

// One is the identity multiplier.
func One() Ratio {
	return Ratio{Num: 1, Den: 1}
}

// ParseRatio parses a decimal string such as "1.25" or "2" into an exact
// ratio. The fractional part is limited to nine digits, matching the stored
// precision of Credit.
func ParseRatio(s string) (Ratio, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") {
		return Ratio{}, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 9 {
		return Ratio{}, fmt.Errorf("%w: %q has more than 9 fractional digits", ErrInvalidRatio, s)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Ratio{}, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
	}

	den := int64(1)
	f := int64(0)
	if frac != "" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return Ratio{}, fmt.Errorf("%w: %q", ErrInvalidRatio, s)
		}
		for range frac {
			den *= 10
		}
	}

	return Ratio{Num: w*den + f, Den: den}, nil
}

// MustParseRatio is ParseRatio that panics on error. For package-level
// defaults and tests.
func MustParseRatio(s string) Ratio {
	r, err := ParseRatio(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Percent returns the ratio (100-p)/100, the multiplier for a p percent
// discount. Values outside [0,100] clamp to the identity or zero multiplier.
func Percent(p int) Ratio {
	if p <= 0 {
		return One()
	}
	if p >= 100 {
		return Ratio{Num: 0, Den: 100}
	}
	return Ratio{Num: int64(100 - p), Den: 100}
}

// AtLeastOne reports whether the ratio is >= 1.
func (r Ratio) AtLeastOne() bool {
	return r.Den > 0 && r.Num >= r.Den
}

// Float returns an approximate float64 value for logging.
func (r Ratio) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// String renders the ratio for logs.
func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// UnmarshalYAML decodes a ratio from a YAML decimal string or number.
func (r *Ratio) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseRatio(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalYAML encodes the ratio as its decimal string where exact, falling
// back to "num/den".
func (r Ratio) MarshalYAML() (interface{}, error) {
	if r.Den == 1 {
		return strconv.FormatInt(r.Num, 10), nil
	}
	return r.String(), nil
}
