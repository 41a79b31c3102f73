package lending

import "math/big"

// Utilisation returns LoanedBalance / Balance scaled so FullUtilisation means
// 100%. A pool with no balance reports zero.
func Utilisation(pool *Pool) *big.Int {
	if pool == nil {
		return big.NewInt(0)
	}
	return ProjectedUtilisation(pool.Funds.LoanedBalance, pool.Funds.Balance)
}

// ProjectedUtilisation applies the utilisation formula to arbitrary totals.
func ProjectedUtilisation(loaned, balance *big.Int) *big.Int {
	if balance == nil || balance.Sign() <= 0 || loaned == nil || loaned.Sign() <= 0 {
		return big.NewInt(0)
	}
	return mulDiv(loaned, bigFullUtilisation, balance)
}

// effectiveUtilisation is the utilisation factor applied to the APY. Only
// Loan pools scale yield with demand.
func effectiveUtilisation(pool *Pool) *big.Int {
	if pool.Type == PoolTypeLoan {
		return Utilisation(pool)
	}
	return new(big.Int).Set(bigFullUtilisation)
}

// Interest computes
//
//	principal × APY × effectiveUtilisation × duration / (100 × 100 × year × FullUtilisation)
//
// with every multiplication performed before the single flooring division.
func Interest(pool *Pool, principal *big.Int, duration uint64) *big.Int {
	if pool == nil || principal == nil || principal.Sign() <= 0 || duration == 0 || pool.APY == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(principal, new(big.Int).SetUint64(pool.APY))
	numerator.Mul(numerator, effectiveUtilisation(pool))
	numerator.Mul(numerator, new(big.Int).SetUint64(duration))
	return numerator.Quo(numerator, interestDenominator)
}

// rewardBaseline is the later of the pool's interest-start marker and the
// position's last touch.
func rewardBaseline(pool *Pool, pos *Position) uint64 {
	return maxUint64(pool.Schedule.EndTime, pos.Transaction.Time)
}

// CappedDuration is the reward-bearing time for a staking position: elapsed
// time since rewardBaseline, capped at the lockup not yet paid out. Pools
// without a schedule, or whose interest has not started, yield zero.
func CappedDuration(pool *Pool, pos *Position, now uint64) uint64 {
	if pool == nil || pos == nil || !pool.InterestStarted() {
		return 0
	}
	elapsed := subFloor(now, rewardBaseline(pool, pos))
	remaining := subFloor(pool.Schedule.Duration, pos.Transaction.PaidOutForDuration)
	return minUint64(elapsed, remaining)
}

// QuartersElapsed counts whole quarters since interest started.
func QuartersElapsed(pool *Pool, now uint64) uint64 {
	if !pool.InterestStarted() {
		return 0
	}
	return subFloor(now, pool.Schedule.EndTime) / QuarterSeconds
}

// LockupEnds returns when ordinary withdrawals open for a scheduled pool.
func LockupEnds(pool *Pool) uint64 {
	if pool == nil || pool.Schedule == nil {
		return 0
	}
	return pool.Schedule.EndTime + pool.Schedule.Duration
}

// constrainedInterest is the implicit interest a ConstrainedLoan borrower owes
// on repaying amount: amount × supply / balance − amount, floored at zero.
func constrainedInterest(amount, supply, balance *big.Int) *big.Int {
	if balance == nil || balance.Sign() <= 0 {
		return big.NewInt(0)
	}
	owed := mulDiv(amount, supply, balance)
	owed.Sub(owed, amount)
	if owed.Sign() < 0 {
		return big.NewInt(0)
	}
	return owed
}

// loanInterest is what a Loan pool borrower owes now: the rolled-up pending
// interest plus accrual on outstanding principal since the last touch.
func loanInterest(pool *Pool, pos *Position, now uint64) *big.Int {
	owed := cloneBig(pos.Transaction.PendingInterest)
	elapsed := subFloor(now, pos.Transaction.Time)
	return owed.Add(owed, Interest(pool, pos.Transaction.Amount, elapsed))
}

// redeemValue converts a receipt amount into base asset using the pool's
// balance to receipt supply ratio. Only Loan pools share borrower interest
// this way; other pools redeem 1:1.
func redeemValue(pool *Pool, amount, supply *big.Int) *big.Int {
	if pool.Type != PoolTypeLoan || supply == nil || supply.Sign() == 0 {
		return cloneBig(amount)
	}
	return mulDiv(amount, pool.Funds.Balance, supply)
}
