// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package credit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDollars(t *testing.T) {
	assert.Equal(t, Credit(1_000_000_000), FromDollars(1.0))
	assert.Equal(t, Credit(250_000_000), FromDollars(0.25))
	assert.Equal(t, Credit(1_500_000), FromDollars(0.0015))
	assert.Equal(t, Zero(), FromDollars(0))
	assert.Equal(t, Zero(), FromDollars(-3.50))
}

func TestFromCents(t *testing.T) {
	assert.Equal(t, Credit(10_000_000), FromCents(1))
	assert.Equal(t, Credit(1_250_000_000), FromCents(125))
	assert.Equal(t, Zero(), FromCents(-5))
}

func TestAddAndIsZero(t *testing.T) {
	a := FromDollars(0.10)
	b := FromDollars(0.05)
	assert.Equal(t, FromDollars(0.15), a.Add(b))
	assert.True(t, Zero().IsZero())
	assert.False(t, a.IsZero())
	assert.Equal(t, a, a.Add(Zero()))
}

func TestDollarsRoundTripAtBoundary(t *testing.T) {
	c := FromDollars(12.345678901)
	assert.InDelta(t, 12.345678901, c.Dollars(), 1e-9)
}

func TestMulRatioExact(t *testing.T) {
	cost := FromDollars(0.40)
	charge := cost.MulRatio(MustParseRatio("1.25"))
	assert.Equal(t, FromDollars(0.50), charge)
}

func TestMulRatioHalfEven(t *testing.T) {
	// 5 * 1/2 = 2.5 nanos -> rounds to 2 (even).
	assert.Equal(t, Credit(2), Credit(5).MulRatio(Ratio{Num: 1, Den: 2}))
	// 7 * 1/2 = 3.5 nanos -> rounds to 4 (even).
	assert.Equal(t, Credit(4), Credit(7).MulRatio(Ratio{Num: 1, Den: 2}))
}

func TestMulRatioNeverNegative(t *testing.T) {
	assert.Equal(t, Zero(), Credit(100).MulRatio(Ratio{Num: -1, Den: 2}))
	assert.Equal(t, Zero(), Credit(100).MulRatio(Ratio{Num: 1, Den: 0}))
	assert.Equal(t, Zero(), Zero().MulRatio(One()))
}

func TestMulRatioMarginProperties(t *testing.T) {
	margins := []string{"1", "1.1", "1.25", "1.5", "2", "3.333333333"}
	costs := []Credit{1, 17, 999, FromCents(3), FromDollars(0.0042), FromDollars(125.99)}

	for _, m := range margins {
		ratio := MustParseRatio(m)
		require.True(t, ratio.AtLeastOne())
		for _, cost := range costs {
			charge := cost.MulRatio(ratio)
			assert.GreaterOrEqual(t, charge, cost, "margin %s cost %d", m, cost)
		}
	}

	for _, cost := range costs {
		assert.Equal(t, cost, cost.MulRatio(One()))
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in   string
		want Ratio
	}{
		{"1", Ratio{1, 1}},
		{"1.25", Ratio{125, 100}},
		{"0.85", Ratio{85, 100}},
		{"2.5", Ratio{25, 10}},
		{"1.000000001", Ratio{1_000_000_001, 1_000_000_000}},
	}
	for _, tt := range tests {
		got, err := ParseRatio(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "-1", "abc", "1.2.3", "1.0000000001"} {
		_, err := ParseRatio(bad)
		assert.ErrorIs(t, err, ErrInvalidRatio, bad)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, One(), Percent(0))
	assert.Equal(t, Ratio{90, 100}, Percent(10))
	assert.Equal(t, Ratio{0, 100}, Percent(100))
	assert.Equal(t, One(), Percent(-5))

	// A 10% discount on $1.00 is $0.90.
	assert.Equal(t, FromDollars(0.90), FromDollars(1.00).MulRatio(Percent(10)))
}

func TestString(t *testing.T) {
	assert.Equal(t, "$1.250000000", FromDollars(1.25).String())
	assert.Equal(t, "$0.000000001", Credit(1).String())
}
