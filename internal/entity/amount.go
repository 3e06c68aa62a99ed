package entity

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// ZilDecimals is the number of Qa in one ZIL expressed as a power of ten.
const ZilDecimals int32 = 12

var ErrInvalidAmount = errors.New("invalid amount")

// ParseZil converts a decimal ZIL amount such as "0.0001" into Qa.
func ParseZil(amount string) (*big.Int, error) {
	return ParseUnits(amount, ZilDecimals)
}

func FormatZil(qa *big.Int) string {
	return FormatUnits(qa, ZilDecimals)
}

func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	if d.IsNegative() {
		return nil, ErrInvalidAmount
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrInvalidAmount
	}

	return scaled.BigInt(), nil
}

func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// CopyAmount returns an independent copy, treating nil as zero.
func CopyAmount(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(amount)
}
