package lending

import (
	"fmt"
	"math/big"
	"strings"
)

// PoolType selects how a pool accrues yield and whether it lends.
type PoolType uint8

const (
	// PoolTypeStaking pays a fixed schedule-bound reward and never lends.
	PoolTypeStaking PoolType = iota
	// PoolTypeLoan lends to whitelisted borrowers; stakers earn through the
	// balance to receipt supply ratio.
	PoolTypeLoan
	// PoolTypeConstrainedLoan combines a staking schedule with whitelisted
	// lending.
	PoolTypeConstrainedLoan
)

func (t PoolType) String() string {
	switch t {
	case PoolTypeStaking:
		return "staking"
	case PoolTypeLoan:
		return "loan"
	case PoolTypeConstrainedLoan:
		return "constrained-loan"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Valid reports whether t names a supported pool type.
func (t PoolType) Valid() bool {
	return t <= PoolTypeConstrainedLoan
}

// Scheduled reports whether pools of this type carry a deposit window and
// lockup schedule.
func (t PoolType) Scheduled() bool {
	return t == PoolTypeStaking || t == PoolTypeConstrainedLoan
}

// Lends reports whether pools of this type accept borrowers.
func (t PoolType) Lends() bool {
	return t == PoolTypeLoan || t == PoolTypeConstrainedLoan
}

// ParsePoolType resolves the textual pool type used by configs and the API.
func ParsePoolType(value string) (PoolType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "staking", "stake":
		return PoolTypeStaking, nil
	case "loan":
		return PoolTypeLoan, nil
	case "constrained-loan", "constrained_loan", "constrainedloan":
		return PoolTypeConstrainedLoan, nil
	default:
		return 0, fmt.Errorf("%w: unknown pool type %q", ErrConfiguration, value)
	}
}

// TxType tags what a position currently represents.
type TxType uint8

const (
	TxNone TxType = iota
	TxStaking
	TxBorrow
)

func (t TxType) String() string {
	switch t {
	case TxStaking:
		return "staking"
	case TxBorrow:
		return "borrow"
	default:
		return "none"
	}
}

// TokenInfo references the pool's base asset and its custodial vault.
type TokenInfo struct {
	Asset    [20]byte
	Vault    [20]byte
	Decimals uint8
	Name     string
	Symbol   string
}

// Funds tracks what the pool holds and what is currently lent out.
type Funds struct {
	Balance       *big.Int
	LoanedBalance *big.Int
}

// Limits bounds deposits. Zero means unlimited.
type Limits struct {
	LimitPerUser *big.Int
	Capacity     *big.Int
}

// Schedule is present on Staking and ConstrainedLoan pools. EndTime closes
// the deposit window and, once InterestStarted is latched, marks the moment
// interest began.
type Schedule struct {
	Duration        uint64
	StartTime       uint64
	EndTime         uint64
	QuarterlyPayout bool
	InterestStarted bool
}

// Credit is present on Loan and ConstrainedLoan pools.
type Credit struct {
	MaxUtilisation uint64
}

// Pool is one independently configured offering.
type Pool struct {
	ID          uint64
	Name        string
	Type        PoolType
	APY         uint64
	Paused      bool
	UniqueUsers uint64
	Token       TokenInfo
	Funds       Funds
	Limits      Limits
	Schedule    *Schedule `rlp:"nil"`
	Credit      *Credit   `rlp:"nil"`
}

// MaxUtilisation returns the borrowing ceiling in whole percent. Pools that do
// not lend report 100.
func (p *Pool) MaxUtilisation() uint64 {
	if p == nil || p.Credit == nil {
		return 100
	}
	return p.Credit.MaxUtilisation
}

// InterestStarted reports whether a scheduled pool has latched its interest
// start.
func (p *Pool) InterestStarted() bool {
	return p != nil && p.Schedule != nil && p.Schedule.InterestStarted
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := *p
	out.Funds = Funds{
		Balance:       cloneBig(p.Funds.Balance),
		LoanedBalance: cloneBig(p.Funds.LoanedBalance),
	}
	out.Limits = Limits{
		LimitPerUser: cloneBig(p.Limits.LimitPerUser),
		Capacity:     cloneBig(p.Limits.Capacity),
	}
	if p.Schedule != nil {
		schedule := *p.Schedule
		out.Schedule = &schedule
	}
	if p.Credit != nil {
		credit := *p.Credit
		out.Credit = &credit
	}
	return &out
}

func (p *Pool) normalize() {
	p.Funds.Balance = orZero(p.Funds.Balance)
	p.Funds.LoanedBalance = orZero(p.Funds.LoanedBalance)
	p.Limits.LimitPerUser = orZero(p.Limits.LimitPerUser)
	p.Limits.Capacity = orZero(p.Limits.Capacity)
}

// Transaction is the live record behind a position.
type Transaction struct {
	Type               TxType
	Amount             *big.Int
	Time               uint64
	PendingInterest    *big.Int
	PaidOutForDuration uint64
	PaidOutForQuarters uint64
}

// Position is one participant's record within one pool.
type Position struct {
	Pool          uint64
	Participant   [20]byte
	IsPoolUser    bool
	IsWhitelisted bool
	Transaction   Transaction
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	out := *p
	out.Transaction.Amount = cloneBig(p.Transaction.Amount)
	out.Transaction.PendingInterest = cloneBig(p.Transaction.PendingInterest)
	return &out
}

// Staked returns the staked amount, zero when the position is not staking.
func (p *Position) Staked() *big.Int {
	if p == nil || p.Transaction.Type != TxStaking {
		return big.NewInt(0)
	}
	return cloneBig(p.Transaction.Amount)
}

// Borrowed returns the outstanding principal, zero when not borrowing.
func (p *Position) Borrowed() *big.Int {
	if p == nil || p.Transaction.Type != TxBorrow {
		return big.NewInt(0)
	}
	return cloneBig(p.Transaction.Amount)
}

func (p *Position) normalize() {
	p.Transaction.Amount = orZero(p.Transaction.Amount)
	p.Transaction.PendingInterest = orZero(p.Transaction.PendingInterest)
}

// PoolConfig is the administrator-supplied definition used by CreatePool and
// EditPool. Schedule fields apply to Staking and ConstrainedLoan pools only;
// MaxUtilisation applies to Loan and ConstrainedLoan pools only.
type PoolConfig struct {
	Name            string
	Type            PoolType
	APY             uint64
	Asset           [20]byte
	Paused          bool
	LimitPerUser    *big.Int
	Capacity        *big.Int
	MaxUtilisation  uint64
	Duration        uint64
	StartTime       uint64
	EndTime         uint64
	QuarterlyPayout bool
}
