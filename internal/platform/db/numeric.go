package db

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxInteger is the largest value an INTEGER column holds.
const MaxInteger = math.MaxInt32

// MaxMoney is the largest value a NUMERIC(12,2) column holds.
var MaxMoney = decimal.RequireFromString("9999999999.99")

// FitsMoney reports whether d can be stored in a NUMERIC(12,2) column after rounding.
func FitsMoney(d decimal.Decimal) bool {
	return d.Round(2).Abs().LessThanOrEqual(MaxMoney)
}
