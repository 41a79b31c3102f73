package lending

import (
	"fmt"
	"math/big"
)

// Audit cross-checks the bookkeeping of pool id against its vault: funds
// cover loans, active flags track non-zero amounts, the user count matches
// and staked amounts add up to the receipt supply.
func (e *Engine) Audit(id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	if pool.Funds.Balance.Cmp(pool.Funds.LoanedBalance) < 0 {
		return fmt.Errorf("%w: pool %d balance %s below loaned %s", ErrConsistency, id, pool.Funds.Balance, pool.Funds.LoanedBalance)
	}
	positions, err := e.Positions(id)
	if err != nil {
		return err
	}
	staked := big.NewInt(0)
	borrowed := big.NewInt(0)
	var users uint64
	for _, pos := range positions {
		active := pos.Transaction.Amount.Sign() > 0
		if active != pos.IsPoolUser {
			return fmt.Errorf("%w: pool %d position %x active=%t amount=%s", ErrConsistency, id, pos.Participant, pos.IsPoolUser, pos.Transaction.Amount)
		}
		if pos.IsPoolUser {
			users++
		}
		staked.Add(staked, pos.Staked())
		borrowed.Add(borrowed, pos.Borrowed())
	}
	if users != pool.UniqueUsers {
		return fmt.Errorf("%w: pool %d counts %d users, found %d", ErrConsistency, id, pool.UniqueUsers, users)
	}
	if borrowed.Cmp(pool.Funds.LoanedBalance) != 0 {
		return fmt.Errorf("%w: pool %d loaned %s, positions owe %s", ErrConsistency, id, pool.Funds.LoanedBalance, borrowed)
	}
	res, err := e.reserveFor(pool)
	if err != nil {
		return err
	}
	supply, err := res.receiptSupply()
	if err != nil {
		return err
	}
	if supply.Cmp(staked) != 0 {
		return fmt.Errorf("%w: pool %d receipt supply %s, positions stake %s", ErrConsistency, id, supply, staked)
	}
	return nil
}
