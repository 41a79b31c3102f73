package engine

import (
	"context"
	"math/big"

	"poolledger/crypto"
	"poolledger/native/bank"
	"poolledger/native/lending"
)

// Engine describes the ledger operations required by the HTTP surface. Every
// mutating call is atomic: it either commits all of its state changes and
// events or none of them.
type Engine interface {
	Owner(ctx context.Context) (crypto.Address, error)
	TransferOwnership(ctx context.Context, caller, next crypto.Address) error
	CreatePool(ctx context.Context, caller crypto.Address, cfg lending.PoolConfig) (uint64, error)
	EditPool(ctx context.Context, caller crypto.Address, id uint64, cfg lending.PoolConfig) error
	SetPaused(ctx context.Context, caller crypto.Address, id uint64, paused bool) error
	StartInterest(ctx context.Context, caller crypto.Address, id uint64) error
	SetWhitelisted(ctx context.Context, caller crypto.Address, id uint64, participant crypto.Address, status bool) error
	FundRewards(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) error

	Deposit(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) error
	Withdraw(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error)
	Borrow(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) error
	Repay(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error)
	ClaimQuarterlyPayout(ctx context.Context, caller crypto.Address, id uint64) (*big.Int, error)
	TransferReceipt(ctx context.Context, caller crypto.Address, id uint64, recipient crypto.Address, amount *big.Int) error

	RegisterAsset(ctx context.Context, asset bank.Asset) error
	Mint(ctx context.Context, asset [20]byte, to crypto.Address, amount *big.Int) error
	Approve(ctx context.Context, owner crypto.Address, asset [20]byte, amount *big.Int) error
	Balance(ctx context.Context, asset [20]byte, holder crypto.Address) (Balance, error)

	Pools(ctx context.Context, offset, limit uint64) ([]*lending.Pool, error)
	Pool(ctx context.Context, id uint64) (*lending.Pool, error)
	Position(ctx context.Context, id uint64, participant crypto.Address) (Position, error)
	Utilisation(ctx context.Context, id uint64, borrow *big.Int) (Utilisation, error)
	Audit(ctx context.Context, id uint64) error
}

// Position pairs the stored position with values derived at read time.
type Position struct {
	Position    *lending.Position
	Receipts    *big.Int
	Outstanding *big.Int
}

// Utilisation reports current and projected utilisation scaled by
// lending.PercentPrecision.
type Utilisation struct {
	Current   *big.Int
	Projected *big.Int
	Max       uint64
}

// Balance is a holder's asset balance and the allowance granted to the ledger.
type Balance struct {
	Asset     bank.Asset
	Amount    *big.Int
	Allowance *big.Int
}
