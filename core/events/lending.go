package events

import (
	"math/big"
	"strconv"

	"poolledger/core/types"
)

const (
	// TypeLendingDeposited captures principal entering a pool.
	TypeLendingDeposited = "lending.deposited"
	// TypeLendingWithdrawn captures principal leaving a pool.
	TypeLendingWithdrawn = "lending.withdrawn"
	// TypeLendingRewardHarvested captures a reward payout to a staker.
	TypeLendingRewardHarvested = "lending.rewardHarvested"
	// TypeLendingBorrowed captures a draw against a credit pool.
	TypeLendingBorrowed = "lending.borrowed"
	// TypeLendingRepaid captures principal and interest returned by a borrower.
	TypeLendingRepaid = "lending.repaid"
	// TypeLendingWhitelisted captures borrower whitelist changes.
	TypeLendingWhitelisted = "lending.whitelisted"
	// TypeLendingPoolPaused captures pause toggles.
	TypeLendingPoolPaused = "lending.poolPaused"
	// TypeLendingStakeTransferred captures receipt tokens moving between holders.
	TypeLendingStakeTransferred = "lending.stakeTransferred"
	// TypeLendingPoolCreated is emitted when a pool is appended to the registry.
	TypeLendingPoolCreated = "lending.poolCreated"
	// TypeLendingPoolEdited is emitted when mutable pool settings change.
	TypeLendingPoolEdited = "lending.poolEdited"
	// TypeLendingInterestStarted is emitted when a scheduled pool latches its interest start.
	TypeLendingInterestStarted = "lending.interestStarted"
	// TypeLendingRewardsFunded is emitted when the owner tops up a reward reserve.
	TypeLendingRewardsFunded = "lending.rewardsFunded"
	// TypeLendingOwnershipTransferred is emitted when registry ownership moves.
	TypeLendingOwnershipTransferred = "lending.ownershipTransferred"
)

// Attribute keys shared by lending events. The journal indexes on these.
const (
	AttrPool         = "pool"
	AttrAccount      = "account"
	AttrAmount       = "amount"
	AttrCounterparty = "to"
)

// LendingDeposited captures a deposit into a pool.
type LendingDeposited struct {
	Pool    uint64
	Account [20]byte
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (LendingDeposited) EventType() string { return TypeLendingDeposited }

// Event converts the structured payload into a broadcastable event.
func (e LendingDeposited) Event() *types.Event {
	return &types.Event{Type: TypeLendingDeposited, Attributes: map[string]string{
		AttrPool:    formatPool(e.Pool),
		AttrAccount: formatAccount(e.Account),
		AttrAmount:  formatAmount(e.Amount),
	}}
}

// LendingWithdrawn captures a withdrawal. Amount is the base asset paid out and
// Redeemed the receipt tokens burned; they differ for utilisation pools.
type LendingWithdrawn struct {
	Pool     uint64
	Account  [20]byte
	Amount   *big.Int
	Redeemed *big.Int
}

// EventType satisfies the Event interface.
func (LendingWithdrawn) EventType() string { return TypeLendingWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e LendingWithdrawn) Event() *types.Event {
	attrs := map[string]string{
		AttrPool:    formatPool(e.Pool),
		AttrAccount: formatAccount(e.Account),
		AttrAmount:  formatAmount(e.Amount),
	}
	if e.Redeemed != nil {
		attrs["redeemed"] = formatAmount(e.Redeemed)
	}
	return &types.Event{Type: TypeLendingWithdrawn, Attributes: attrs}
}

// LendingRewardHarvested captures a reward payment.
type LendingRewardHarvested struct {
	Pool     uint64
	Account  [20]byte
	Amount   *big.Int
	Duration uint64
	Quarters uint64
}

// EventType satisfies the Event interface.
func (LendingRewardHarvested) EventType() string { return TypeLendingRewardHarvested }

// Event converts the structured payload into a broadcastable event.
func (e LendingRewardHarvested) Event() *types.Event {
	attrs := map[string]string{
		AttrPool:    formatPool(e.Pool),
		AttrAccount: formatAccount(e.Account),
		AttrAmount:  formatAmount(e.Amount),
		"duration":  strconv.FormatUint(e.Duration, 10),
	}
	if e.Quarters > 0 {
		attrs["quarters"] = strconv.FormatUint(e.Quarters, 10)
	}
	return &types.Event{Type: TypeLendingRewardHarvested, Attributes: attrs}
}

// LendingBorrowed captures a borrow.
type LendingBorrowed struct {
	Pool    uint64
	Account [20]byte
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (LendingBorrowed) EventType() string { return TypeLendingBorrowed }

// Event converts the structured payload into a broadcastable event.
func (e LendingBorrowed) Event() *types.Event {
	return &types.Event{Type: TypeLendingBorrowed, Attributes: map[string]string{
		AttrPool:    formatPool(e.Pool),
		AttrAccount: formatAccount(e.Account),
		AttrAmount:  formatAmount(e.Amount),
	}}
}

// LendingRepaid captures a repayment.
type LendingRepaid struct {
	Pool     uint64
	Account  [20]byte
	Amount   *big.Int
	Interest *big.Int
}

// EventType satisfies the Event interface.
func (LendingRepaid) EventType() string { return TypeLendingRepaid }

// Event converts the structured payload into a broadcastable event.
func (e LendingRepaid) Event() *types.Event {
	return &types.Event{Type: TypeLendingRepaid, Attributes: map[string]string{
		AttrPool:    formatPool(e.Pool),
		AttrAccount: formatAccount(e.Account),
		AttrAmount:  formatAmount(e.Amount),
		"interest":  formatAmount(e.Interest),
	}}
}

// LendingWhitelisted captures a whitelist toggle.
type LendingWhitelisted struct {
	Pool    uint64
	Account [20]byte
	Status  bool
}

// EventType satisfies the Event interface.
func (LendingWhitelisted) EventType() string { return TypeLendingWhitelisted }

// Event converts the structured payload into a broadcastable event.
func (e LendingWhitelisted) Event() *types.Event {
	return &types.Event{Type: TypeLendingWhitelisted, Attributes: map[string]string{
		AttrPool:    formatPool(e.Pool),
		AttrAccount: formatAccount(e.Account),
		"status":    strconv.FormatBool(e.Status),
	}}
}

// LendingPoolPaused captures a pause toggle.
type LendingPoolPaused struct {
	Pool   uint64
	Paused bool
}

// EventType satisfies the Event interface.
func (LendingPoolPaused) EventType() string { return TypeLendingPoolPaused }

// Event converts the structured payload into a broadcastable event.
func (e LendingPoolPaused) Event() *types.Event {
	return &types.Event{Type: TypeLendingPoolPaused, Attributes: map[string]string{
		AttrPool: formatPool(e.Pool),
		"paused": strconv.FormatBool(e.Paused),
	}}
}

// LendingStakeTransferred captures a reconciled receipt-token transfer.
type LendingStakeTransferred struct {
	Pool   uint64
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType satisfies the Event interface.
func (LendingStakeTransferred) EventType() string { return TypeLendingStakeTransferred }

// Event converts the structured payload into a broadcastable event.
func (e LendingStakeTransferred) Event() *types.Event {
	return &types.Event{Type: TypeLendingStakeTransferred, Attributes: map[string]string{
		AttrPool:         formatPool(e.Pool),
		AttrAccount:      formatAccount(e.From),
		AttrCounterparty: formatAccount(e.To),
		AttrAmount:       formatAmount(e.Amount),
	}}
}

// LendingPoolCreated captures a new pool.
type LendingPoolCreated struct {
	Pool  uint64
	Name  string
	Kind  string
	Vault [20]byte
}

// EventType satisfies the Event interface.
func (LendingPoolCreated) EventType() string { return TypeLendingPoolCreated }

// Event converts the structured payload into a broadcastable event.
func (e LendingPoolCreated) Event() *types.Event {
	attrs := map[string]string{
		AttrPool: formatPool(e.Pool),
		"name":   e.Name,
		"kind":   e.Kind,
	}
	if !zeroAddress(e.Vault) {
		attrs["vault"] = formatVault(e.Vault)
	}
	return &types.Event{Type: TypeLendingPoolCreated, Attributes: attrs}
}

// LendingPoolEdited captures a configuration change.
type LendingPoolEdited struct {
	Pool uint64
	Name string
}

// EventType satisfies the Event interface.
func (LendingPoolEdited) EventType() string { return TypeLendingPoolEdited }

// Event converts the structured payload into a broadcastable event.
func (e LendingPoolEdited) Event() *types.Event {
	return &types.Event{Type: TypeLendingPoolEdited, Attributes: map[string]string{
		AttrPool: formatPool(e.Pool),
		"name":   e.Name,
	}}
}

// LendingInterestStarted captures the interest latch.
type LendingInterestStarted struct {
	Pool      uint64
	StartedAt uint64
}

// EventType satisfies the Event interface.
func (LendingInterestStarted) EventType() string { return TypeLendingInterestStarted }

// Event converts the structured payload into a broadcastable event.
func (e LendingInterestStarted) Event() *types.Event {
	return &types.Event{Type: TypeLendingInterestStarted, Attributes: map[string]string{
		AttrPool:    formatPool(e.Pool),
		"startedAt": strconv.FormatUint(e.StartedAt, 10),
	}}
}

// LendingRewardsFunded captures a reward reserve top-up.
type LendingRewardsFunded struct {
	Pool    uint64
	Account [20]byte
	Amount  *big.Int
}

// EventType satisfies the Event interface.
func (LendingRewardsFunded) EventType() string { return TypeLendingRewardsFunded }

// Event converts the structured payload into a broadcastable event.
func (e LendingRewardsFunded) Event() *types.Event {
	return &types.Event{Type: TypeLendingRewardsFunded, Attributes: map[string]string{
		AttrPool:    formatPool(e.Pool),
		AttrAccount: formatAccount(e.Account),
		AttrAmount:  formatAmount(e.Amount),
	}}
}

// LendingOwnershipTransferred captures a change of registry owner.
type LendingOwnershipTransferred struct {
	Previous [20]byte
	Owner    [20]byte
}

// EventType satisfies the Event interface.
func (LendingOwnershipTransferred) EventType() string { return TypeLendingOwnershipTransferred }

// Event converts the structured payload into a broadcastable event.
func (e LendingOwnershipTransferred) Event() *types.Event {
	return &types.Event{Type: TypeLendingOwnershipTransferred, Attributes: map[string]string{
		"previous":  formatAccount(e.Previous),
		AttrAccount: formatAccount(e.Owner),
	}}
}
