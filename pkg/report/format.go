package report

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	moneyPlaces  = 6
	factorPlaces = 4
	timeLayout   = time.RFC3339
)

// num renders x with a fixed number of places. Rounding goes through decimal so values that
// round to zero never print as "-0.000000".
func num(x float64, places int32) string {
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	return decimal.NewFromFloat(x).StringFixed(places)
}

func money(x float64) string {
	return num(x, moneyPlaces)
}

func stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
