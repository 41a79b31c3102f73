package lending

import (
	"fmt"
	"math/big"

	"poolledger/crypto"
)

// PoolCount returns how many pools have been created.
func (e *Engine) PoolCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	meta, err := e.loadRegistry()
	if err != nil {
		return 0, err
	}
	return meta.PoolCount, nil
}

// Pool returns a snapshot of pool id.
func (e *Engine) Pool(id uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPool(id)
}

// Pools returns snapshots for ids in [offset, offset+limit). A zero limit
// returns every remaining pool.
func (e *Engine) Pools(offset, limit uint64) ([]*Pool, error) {
	count, err := e.PoolCount()
	if err != nil {
		return nil, err
	}
	if offset >= count {
		return []*Pool{}, nil
	}
	end := count
	if limit > 0 && offset+limit < count {
		end = offset + limit
	}
	pools := make([]*Pool, 0, end-offset)
	for id := offset; id < end; id++ {
		pool, err := e.loadPool(id)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// Position returns the participant's position in pool id. Participants who
// never interacted with the pool get an empty position.
func (e *Engine) Position(id uint64, participant crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadPool(id); err != nil {
		return nil, err
	}
	return e.loadPosition(id, participant.Raw())
}

// Positions returns every position that has ever been active in pool id.
func (e *Engine) Positions(id uint64) ([]*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadPool(id); err != nil {
		return nil, err
	}
	participants, err := e.participants(id)
	if err != nil {
		return nil, err
	}
	out := make([]*Position, 0, len(participants))
	for _, participant := range participants {
		pos, err := e.loadPosition(id, participant)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

// OutstandingInterest previews what the position would settle right now:
// interest owed on a borrow, or the reward payable on a stake.
func (e *Engine) OutstandingInterest(id uint64, participant crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(id, participant.Raw())
	if err != nil {
		return nil, err
	}
	now := e.now()
	switch pos.Transaction.Type {
	case TxBorrow:
		if pool.Type == PoolTypeLoan {
			return loanInterest(pool, pos, now), nil
		}
		res, err := e.reserveFor(pool)
		if err != nil {
			return nil, err
		}
		supply, err := res.receiptSupply()
		if err != nil {
			return nil, err
		}
		return constrainedInterest(pos.Transaction.Amount, supply, pool.Funds.Balance), nil
	case TxStaking:
		return Interest(pool, pos.Transaction.Amount, CappedDuration(pool, pos, now)), nil
	default:
		return big.NewInt(0), nil
	}
}

// UtilisationPreview reports the pool's current utilisation and the
// utilisation it would reach after an additional borrow of amount. Both are
// scaled by PercentPrecision.
func (e *Engine) UtilisationPreview(id uint64, borrow *big.Int) (current, projected *big.Int, err error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if borrow != nil && borrow.Sign() < 0 {
		return nil, nil, fmt.Errorf("%w: borrow preview must not be negative", ErrInvalidAmount)
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return nil, nil, err
	}
	current = Utilisation(pool)
	loaned := new(big.Int).Add(pool.Funds.LoanedBalance, orZero(borrow))
	projected = ProjectedUtilisation(loaned, pool.Funds.Balance)
	return current, projected, nil
}

// ReceiptBalance returns the holder's receipt token balance for pool id.
func (e *Engine) ReceiptBalance(id uint64, holder crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	res, err := e.reserveFor(pool)
	if err != nil {
		return nil, err
	}
	return res.vaultC.BalanceOf(holder.Raw())
}
