package lending

import (
	"fmt"
	"math/big"

	"poolledger/core/events"
	"poolledger/crypto"
	nativecommon "poolledger/native/common"
)

// OnReceiptTransfer mirrors a holder-to-holder receipt token movement into
// the positions of both parties. Only the vault registered for poolID may
// call it, and never while an operation on that pool is in flight.
func (e *Engine) OnReceiptTransfer(vault [20]byte, poolID uint64, from, to [20]byte, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	bound, ok, err := e.recognisedVault(vault)
	if err != nil {
		return err
	}
	if !ok || bound != poolID {
		return fmt.Errorf("%w: vault is not registered for pool %d", ErrAuthorization, poolID)
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Token.Vault != vault {
		return fmt.Errorf("%w: vault is not registered for pool %d", ErrAuthorization, poolID)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	release, err := e.enter(poolID)
	if err != nil {
		return err
	}
	defer release()

	recipient, err := e.loadPosition(poolID, to)
	if err != nil {
		return err
	}
	if recipient.Transaction.Type == TxBorrow && recipient.Transaction.Amount.Sign() > 0 {
		return fmt.Errorf("%w: recipient holds an outstanding borrow", ErrConsistency)
	}
	sender, err := e.loadPosition(poolID, from)
	if err != nil {
		return err
	}
	staked := sender.Staked()
	if staked.Cmp(amount) < 0 {
		return fmt.Errorf("%w: sender staked %s, transferring %s", ErrAmount, staked, amount)
	}

	if recipient.Transaction.Time == 0 {
		recipient.Transaction.Time = sender.Transaction.Time
	}
	// Rewards already paid on the moved tokens travel with them.
	recipient.Transaction.PaidOutForDuration = maxUint64(recipient.Transaction.PaidOutForDuration, sender.Transaction.PaidOutForDuration)
	recipient.Transaction.PaidOutForQuarters = maxUint64(recipient.Transaction.PaidOutForQuarters, sender.Transaction.PaidOutForQuarters)
	recipient.Transaction.Type = TxStaking
	recipient.Transaction.Amount = new(big.Int).Add(recipient.Transaction.Amount, amount)
	sender.Transaction.Amount = new(big.Int).Sub(sender.Transaction.Amount, amount)
	settleIfEmpty(pool, sender)
	if err := e.markUser(pool, recipient); err != nil {
		return err
	}
	if err := e.storePosition(sender); err != nil {
		return err
	}
	if err := e.storePosition(recipient); err != nil {
		return err
	}
	if err := e.storePool(pool); err != nil {
		return err
	}
	e.emit(events.LendingStakeTransferred{Pool: poolID, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferReceipt moves receipt tokens from caller to recipient through the
// pool's vault, which in turn reconciles the positions via OnReceiptTransfer.
func (e *Engine) TransferReceipt(caller crypto.Address, id uint64, recipient crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if recipient.IsZero() {
		return fmt.Errorf("%w: recipient must be set", ErrConfiguration)
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	custodian, err := e.vaults.OpenVault(pool.Token.Vault)
	if err != nil {
		return fmt.Errorf("%w: pool %d vault: %v", ErrConsistency, id, err)
	}
	return custodian.Transfer(caller.Raw(), recipient.Raw(), amount)
}
