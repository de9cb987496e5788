package stf

import "math"

const (
	MinSafeCount = 3
	MaxSafeCount = 7
	// MaxSafeIndex bounds checkSafe indices regardless of the round's safe count
	MaxSafeIndex = 7

	// NewAccountBalanceFloor is the balance below which a pick can never lose
	NewAccountBalanceFloor = 50

	roundEscalator = 0.55
	fallbackRate   = 0.1
)

// baseRates is indexed by safeCount-3
var baseRates = [...]float64{0.33, 0.22, 0.16, 0.13, 0.11}

// BaseRate returns the per-safe reward rate for a round with safeCount safes
func BaseRate(safeCount int) float64 {
	i := safeCount - MinSafeCount
	if i < 0 || i >= len(baseRates) {
		return fallbackRate
	}
	return baseRates[i]
}

// Prize is floor(base * (1 + (round-1)*0.55) * 100).
// The explicit float64 conversions keep each product rounded on its own so
// the result never depends on fused multiply-add support.
func Prize(safeCount, round int) int64 {
	growth := 1 + float64(float64(round-1)*roundEscalator)
	value := float64(BaseRate(safeCount) * growth)
	return int64(math.Floor(float64(value * 100)))
}
