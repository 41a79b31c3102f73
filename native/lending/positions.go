package lending

import (
	"fmt"
	"math/big"

	"poolledger/core/events"
	"poolledger/crypto"
)

// Deposit stakes amount of the pool asset and issues the same amount of
// receipt tokens to the caller. The caller must have approved the ledger for
// amount beforehand.
func (e *Engine) Deposit(caller crypto.Address, id uint64, amount *big.Int) error {
	release, err := e.participantOp(id, amount, true)
	if err != nil {
		return err
	}
	defer release()

	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	if pool.Paused {
		return fmt.Errorf("%w: pool %d paused", ErrPoolState, id)
	}
	now := e.now()
	if s := pool.Schedule; s != nil && (now < s.StartTime || now > s.EndTime) {
		return fmt.Errorf("%w: deposit window is [%d, %d], now %d", ErrTiming, s.StartTime, s.EndTime, now)
	}
	participant := caller.Raw()
	pos, err := e.loadPosition(id, participant)
	if err != nil {
		return err
	}
	if pos.Transaction.Type == TxBorrow && pos.Transaction.Amount.Sign() > 0 {
		return fmt.Errorf("%w: repay outstanding borrow before staking", ErrConsistency)
	}
	if limit := pool.Limits.LimitPerUser; limit.Sign() > 0 {
		headroom := new(big.Int).Sub(limit, pos.Staked())
		if amount.Cmp(headroom) > 0 {
			return fmt.Errorf("%w: per-user limit %s, remaining %s", ErrCapacity, limit, headroom)
		}
	}
	newBalance := new(big.Int).Add(pool.Funds.Balance, amount)
	if capacity := pool.Limits.Capacity; capacity.Sign() > 0 && newBalance.Cmp(capacity) > 0 {
		return fmt.Errorf("%w: pool capacity %s", ErrCapacity, capacity)
	}
	res, err := e.reserveFor(pool)
	if err != nil {
		return err
	}

	pos.Transaction.Type = TxStaking
	pos.Transaction.Amount = new(big.Int).Add(pos.Transaction.Amount, amount)
	pos.Transaction.Time = now
	pool.Funds.Balance = newBalance
	if err := e.markUser(pool, pos); err != nil {
		return err
	}
	if err := e.storePosition(pos); err != nil {
		return err
	}
	if err := e.storePool(pool); err != nil {
		return err
	}

	if err := res.collectPrincipal(participant, amount); err != nil {
		return err
	}
	if err := res.issue(participant, amount); err != nil {
		return err
	}
	e.emit(events.LendingDeposited{Pool: id, Account: participant, Amount: new(big.Int).Set(amount)})
	return nil
}

// Withdraw burns amount of receipt tokens, pays any reward accrued for the
// capped duration and returns the principal. Loan pools convert amount by
// the pool's balance to receipt supply ratio so stakers share borrower
// interest. The base asset paid out (excluding reward) is returned.
func (e *Engine) Withdraw(caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
	release, err := e.participantOp(id, amount, true)
	if err != nil {
		return nil, err
	}
	defer release()

	pool, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	participant := caller.Raw()
	pos, err := e.loadPosition(id, participant)
	if err != nil {
		return nil, err
	}
	staked := pos.Staked()
	if staked.Sign() == 0 {
		return nil, fmt.Errorf("%w: no staking position", ErrAmount)
	}
	if amount.Cmp(staked) > 0 {
		return nil, fmt.Errorf("%w: requested %s, staked %s", ErrAmount, amount, staked)
	}
	now := e.now()
	if pool.Schedule != nil {
		if !pool.Schedule.InterestStarted {
			return nil, fmt.Errorf("%w: interest payouts not started", ErrPoolState)
		}
		if unlock := LockupEnds(pool); now < unlock {
			return nil, fmt.Errorf("%w: lockup ends at %d, now %d", ErrTiming, unlock, now)
		}
	}
	res, err := e.reserveFor(pool)
	if err != nil {
		return nil, err
	}
	supply, err := res.receiptSupply()
	if err != nil {
		return nil, err
	}

	duration := CappedDuration(pool, pos, now)
	reward := Interest(pool, staked, duration)
	payout := redeemValue(pool, amount, supply)
	outflow := new(big.Int).Add(reward, payout)
	if pool.Funds.Balance.Cmp(outflow) < 0 {
		return nil, fmt.Errorf("%w: pool balance %s cannot cover %s", ErrCapacity, pool.Funds.Balance, outflow)
	}
	newBalance := new(big.Int).Sub(pool.Funds.Balance, outflow)
	if pool.Credit != nil {
		if pool.Funds.LoanedBalance.Cmp(newBalance) > 0 {
			return nil, fmt.Errorf("%w: %s is lent out", ErrCapacity, pool.Funds.LoanedBalance)
		}
		projected := ProjectedUtilisation(pool.Funds.LoanedBalance, newBalance)
		if projected.Cmp(utilisationCeiling(pool.Credit.MaxUtilisation)) > 0 {
			return nil, fmt.Errorf("%w: utilisation would exceed %d%%", ErrCapacity, pool.Credit.MaxUtilisation)
		}
	}

	harvest := e.recordReward(pool, pos, duration, reward)
	pos.Transaction.Time = now
	pos.Transaction.Amount = new(big.Int).Sub(pos.Transaction.Amount, amount)
	pool.Funds.Balance = new(big.Int).Sub(pool.Funds.Balance, payout)
	settleIfEmpty(pool, pos)
	if err := e.storePosition(pos); err != nil {
		return nil, err
	}
	if err := e.storePool(pool); err != nil {
		return nil, err
	}

	if err := res.redeem(participant, amount); err != nil {
		return nil, err
	}
	if err := res.pay(participant, reward); err != nil {
		return nil, err
	}
	if err := res.pay(participant, payout); err != nil {
		return nil, err
	}
	if harvest != nil {
		e.emit(*harvest)
	}
	e.emit(events.LendingWithdrawn{Pool: id, Account: participant, Amount: new(big.Int).Set(payout), Redeemed: new(big.Int).Set(amount)})
	return payout, nil
}

// Borrow draws amount from a lending pool for a whitelisted participant.
func (e *Engine) Borrow(caller crypto.Address, id uint64, amount *big.Int) error {
	release, err := e.participantOp(id, amount, true)
	if err != nil {
		return err
	}
	defer release()

	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	if pool.Credit == nil {
		return fmt.Errorf("%w: %s pools do not lend", ErrPoolState, pool.Type)
	}
	participant := caller.Raw()
	pos, err := e.loadPosition(id, participant)
	if err != nil {
		return err
	}
	if !pos.IsWhitelisted {
		return fmt.Errorf("%w: borrower not whitelisted", ErrAuthorization)
	}
	if pool.Paused {
		return fmt.Errorf("%w: pool %d paused", ErrPoolState, id)
	}
	if pool.Funds.Balance.Sign() == 0 {
		return fmt.Errorf("%w: pool has no funds", ErrCapacity)
	}
	if pos.Transaction.Type == TxStaking && pos.Transaction.Amount.Sign() > 0 {
		return fmt.Errorf("%w: withdraw stake before borrowing", ErrConsistency)
	}
	loaned := new(big.Int).Add(pool.Funds.LoanedBalance, amount)
	if loaned.Cmp(pool.Funds.Balance) > 0 {
		return fmt.Errorf("%w: pool balance %s cannot cover loans of %s", ErrCapacity, pool.Funds.Balance, loaned)
	}
	projected := ProjectedUtilisation(loaned, pool.Funds.Balance)
	if projected.Cmp(utilisationCeiling(pool.Credit.MaxUtilisation)) > 0 {
		return fmt.Errorf("%w: utilisation would exceed %d%%", ErrCapacity, pool.Credit.MaxUtilisation)
	}
	res, err := e.reserveFor(pool)
	if err != nil {
		return err
	}

	now := e.now()
	if pool.Type == PoolTypeLoan && pos.Transaction.Amount.Sign() > 0 {
		elapsed := subFloor(now, pos.Transaction.Time)
		accrued := Interest(pool, pos.Transaction.Amount, elapsed)
		pos.Transaction.PendingInterest = new(big.Int).Add(pos.Transaction.PendingInterest, accrued)
	}
	pos.Transaction.Type = TxBorrow
	pos.Transaction.Amount = new(big.Int).Add(pos.Transaction.Amount, amount)
	pos.Transaction.Time = now
	pool.Funds.LoanedBalance = loaned
	if err := e.markUser(pool, pos); err != nil {
		return err
	}
	if err := e.storePosition(pos); err != nil {
		return err
	}
	if err := e.storePool(pool); err != nil {
		return err
	}

	if err := res.pay(participant, amount); err != nil {
		return err
	}
	e.emit(events.LendingBorrowed{Pool: id, Account: participant, Amount: new(big.Int).Set(amount)})
	return nil
}

// Repay returns amount of principal plus the interest owed on it. The
// interest charged is returned.
func (e *Engine) Repay(caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
	release, err := e.participantOp(id, amount, true)
	if err != nil {
		return nil, err
	}
	defer release()

	pool, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	if pool.Credit == nil {
		return nil, fmt.Errorf("%w: %s pools do not lend", ErrPoolState, pool.Type)
	}
	participant := caller.Raw()
	pos, err := e.loadPosition(id, participant)
	if err != nil {
		return nil, err
	}
	borrowed := pos.Borrowed()
	if borrowed.Sign() == 0 {
		return nil, fmt.Errorf("%w: no outstanding borrow", ErrAmount)
	}
	if amount.Cmp(borrowed) > 0 {
		return nil, fmt.Errorf("%w: repaying %s, owed %s", ErrAmount, amount, borrowed)
	}
	res, err := e.reserveFor(pool)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var interest *big.Int
	switch pool.Type {
	case PoolTypeLoan:
		interest = loanInterest(pool, pos, now)
	default:
		supply, err := res.receiptSupply()
		if err != nil {
			return nil, err
		}
		interest = constrainedInterest(amount, supply, pool.Funds.Balance)
	}

	pool.Funds.Balance = new(big.Int).Add(pool.Funds.Balance, interest)
	pool.Funds.LoanedBalance = new(big.Int).Sub(pool.Funds.LoanedBalance, amount)
	pos.Transaction.Amount = new(big.Int).Sub(pos.Transaction.Amount, amount)
	pos.Transaction.PendingInterest = big.NewInt(0)
	pos.Transaction.Time = now
	settleIfEmpty(pool, pos)
	if err := e.storePosition(pos); err != nil {
		return nil, err
	}
	if err := e.storePool(pool); err != nil {
		return nil, err
	}

	if err := res.collectPrincipal(participant, new(big.Int).Add(amount, interest)); err != nil {
		return nil, err
	}
	e.emit(events.LendingRepaid{Pool: id, Account: participant, Amount: new(big.Int).Set(amount), Interest: new(big.Int).Set(interest)})
	return interest, nil
}

// ClaimQuarterlyPayout pays the reward for newly completed quarters without
// touching principal. The reward paid is returned.
func (e *Engine) ClaimQuarterlyPayout(caller crypto.Address, id uint64) (*big.Int, error) {
	release, err := e.participantOp(id, nil, false)
	if err != nil {
		return nil, err
	}
	defer release()

	pool, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	if pool.Schedule == nil || !pool.Schedule.QuarterlyPayout {
		return nil, fmt.Errorf("%w: quarterly payouts disabled", ErrPoolState)
	}
	if !pool.Schedule.InterestStarted {
		return nil, fmt.Errorf("%w: interest payouts not started", ErrPoolState)
	}
	participant := caller.Raw()
	pos, err := e.loadPosition(id, participant)
	if err != nil {
		return nil, err
	}
	staked := pos.Staked()
	if staked.Sign() == 0 {
		return nil, fmt.Errorf("%w: no staking position", ErrAmount)
	}
	now := e.now()
	quarters := QuartersElapsed(pool, now)
	if quarters == 0 {
		return nil, fmt.Errorf("%w: first quarter not reached", ErrTiming)
	}
	if pos.Transaction.PaidOutForQuarters >= quarters {
		return nil, fmt.Errorf("%w: already claimed through quarter %d", ErrTiming, pos.Transaction.PaidOutForQuarters)
	}

	baseline := rewardBaseline(pool, pos)
	eligible := (quarters - pos.Transaction.PaidOutForQuarters) * QuarterSeconds
	duration := minUint64(eligible, subFloor(now, baseline))
	duration = minUint64(duration, subFloor(pool.Schedule.Duration, pos.Transaction.PaidOutForDuration))
	reward := Interest(pool, staked, duration)
	if pool.Funds.Balance.Cmp(reward) < 0 {
		return nil, fmt.Errorf("%w: pool balance %s cannot cover reward %s", ErrCapacity, pool.Funds.Balance, reward)
	}
	res, err := e.reserveFor(pool)
	if err != nil {
		return nil, err
	}

	harvest := e.recordReward(pool, pos, duration, reward)
	pos.Transaction.PaidOutForQuarters = quarters
	pos.Transaction.Time = baseline + duration
	if harvest != nil {
		harvest.Quarters = quarters
	}
	if err := e.storePosition(pos); err != nil {
		return nil, err
	}
	if err := e.storePool(pool); err != nil {
		return nil, err
	}

	if err := res.pay(participant, reward); err != nil {
		return nil, err
	}
	if harvest != nil {
		e.emit(*harvest)
	}
	return reward, nil
}

// recordReward applies the bookkeeping half of a reward payment: the duration
// is credited against the lockup and the pool balance drops by reward. The
// returned event is nil when nothing is owed.
func (e *Engine) recordReward(pool *Pool, pos *Position, duration uint64, reward *big.Int) *events.LendingRewardHarvested {
	if pool.Schedule != nil {
		paid := pos.Transaction.PaidOutForDuration + duration
		pos.Transaction.PaidOutForDuration = minUint64(paid, pool.Schedule.Duration)
	}
	if reward.Sign() <= 0 {
		return nil
	}
	pool.Funds.Balance = new(big.Int).Sub(pool.Funds.Balance, reward)
	return &events.LendingRewardHarvested{
		Pool:     pool.ID,
		Account:  pos.Participant,
		Amount:   new(big.Int).Set(reward),
		Duration: duration,
	}
}
