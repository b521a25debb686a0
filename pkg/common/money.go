package common

import (
	"strings"

	"github.com/shopspring/decimal"
)

var Hundred = decimal.NewFromInt(100)

// Round2 rounds to cents, half away from zero
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParseMoney parses a decimal string, empty means zero
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
