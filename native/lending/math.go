package lending

import "math/big"

const (
	// PercentPrecision scales one whole percent in utilisation figures.
	PercentPrecision = 1_000_000
	// FullUtilisation is 100% expressed with PercentPrecision.
	FullUtilisation = 100 * PercentPrecision

	// YearSeconds is the accrual year used by every interest figure.
	YearSeconds = 365 * 24 * 60 * 60
	// QuarterSeconds is the period that gates quarterly reward claims.
	QuarterSeconds = 90 * 24 * 60 * 60
)

var (
	bigFullUtilisation = big.NewInt(FullUtilisation)
	// 100 (APY basis) × 100 (percent) × year × precision.
	interestDenominator = new(big.Int).Mul(
		big.NewInt(100*100*YearSeconds),
		bigFullUtilisation,
	)
)

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// mulDiv returns a*b/c floored, or zero when c is zero.
func mulDiv(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, c)
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func subFloor(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// utilisationCeiling converts a whole-percent ceiling to PercentPrecision.
func utilisationCeiling(maxUtilisation uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(maxUtilisation), big.NewInt(PercentPrecision))
}
