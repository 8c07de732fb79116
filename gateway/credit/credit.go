// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

// Package credit provides the fixed-point monetary type used for all cost and
// charge arithmetic in the gateway. Amounts are stored as an integer count of
// nanodollars so repeated multiplication by fractional margins never drifts
// the way float64 dollars would. Conversion to decimal dollars happens only at
// I/O boundaries (request logging, legacy persisted cents columns) and is
// always explicitly rounded.
package credit

import (
	"fmt"
	"math/big"
)

// NanosPerDollar is the number of credit units in one US dollar.
const NanosPerDollar int64 = 1_000_000_000

// NanosPerCent is the number of credit units in one US cent.
const NanosPerCent int64 = NanosPerDollar / 100

// Credit is a non-negative count of nanodollars.
type Credit int64

// Zero returns the zero credit value.
func Zero() Credit {
	return Credit(0)
}

// FromDollars converts a decimal dollar amount to Credit, rounding half-even
// to the nearest nanodollar. Negative inputs clamp to zero.
func FromDollars(dollars float64) Credit {
	if dollars <= 0 {
		return 0
	}
	r := new(big.Rat).SetFloat64(dollars)
	if r == nil {
		return 0
	}
	r.Mul(r, new(big.Rat).SetInt64(NanosPerDollar))
	return Credit(roundHalfEven(r.Num(), r.Denom()))
}

// FromCents converts a whole-cent amount to Credit. Used when reading legacy
// persisted cents columns. Negative inputs clamp to zero.
func FromCents(cents int64) Credit {
	if cents <= 0 {
		return 0
	}
	return Credit(cents * NanosPerCent)
}

// Add returns the sum of two credit values.
func (c Credit) Add(other Credit) Credit {
	return c + other
}

// IsZero reports whether the credit value is zero.
func (c Credit) IsZero() bool {
	return c == 0
}

// Dollars converts the credit value to a decimal dollar amount. This is a
// boundary conversion only; never feed the result back into credit arithmetic.
func (c Credit) Dollars() float64 {
	return float64(c) / float64(NanosPerDollar)
}

// MulRatio multiplies the credit value by an exact ratio, rounding half-even
// to the nearest nanodollar. Half-even keeps rounding bias from compounding
// over many small transactions.
func (c Credit) MulRatio(r Ratio) Credit {
	if c <= 0 || r.Num <= 0 || r.Den <= 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(int64(c)), big.NewInt(r.Num))
	return Credit(roundHalfEven(num, big.NewInt(r.Den)))
}

// String renders the value as a decimal dollar string for logs.
func (c Credit) String() string {
	whole := int64(c) / NanosPerDollar
	frac := int64(c) % NanosPerDollar
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("$%d.%09d", whole, frac)
}

// roundHalfEven divides num by den and rounds the quotient half-even.
// den must be positive.
func roundHalfEven(num, den *big.Int) int64 {
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	twice := new(big.Int).Lsh(new(big.Int).Abs(rem), 1)
	cmp := twice.Cmp(den)
	if cmp > 0 || (cmp == 0 && q.Bit(0) == 1) {
		if num.Sign() >= 0 {
			q.Add(q, big.NewInt(1))
		} else {
			q.Sub(q, big.NewInt(1))
		}
	}
	return q.Int64()
}
