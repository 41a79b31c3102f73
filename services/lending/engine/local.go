package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"poolledger/core/events"
	"poolledger/core/state"
	"poolledger/crypto"
	"poolledger/native/bank"
	nativecommon "poolledger/native/common"
	"poolledger/native/lending"
	"poolledger/native/vault"
	"poolledger/observability"
)

const moduleName = "lending"

// Config wires a Local runtime.
type Config struct {
	// Ledger is the account the engine acts as when pulling allowances and
	// controlling vaults.
	Ledger  crypto.Address
	Pauses  *nativecommon.PauseSet
	Emitter events.Emitter
	Logger  *slog.Logger
	Now     func() int64
	Metrics *observability.LendingMetrics
}

// Local runs the lending engine in-process against a state manager. Calls are
// serialised; each mutating call runs inside its own state transaction.
type Local struct {
	mu      sync.RWMutex
	state   *state.Manager
	ledger  crypto.Address
	pauses  *nativecommon.PauseSet
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() int64
	tracer  trace.Tracer
	metrics *observability.LendingMetrics
	closed  bool
}

var _ Engine = (*Local)(nil)

// NewLocal constructs a runtime over manager.
func NewLocal(manager *state.Manager, cfg Config) (*Local, error) {
	if manager == nil {
		return nil, fmt.Errorf("lending runtime: state manager required")
	}
	if cfg.Ledger.IsZero() {
		return nil, fmt.Errorf("lending runtime: ledger address required")
	}
	l := &Local{
		state:   manager,
		ledger:  cfg.Ledger,
		pauses:  cfg.Pauses,
		emitter: cfg.Emitter,
		logger:  cfg.Logger,
		nowFn:   cfg.Now,
		tracer:  otel.Tracer("poolledger/lending"),
		metrics: cfg.Metrics,
	}
	if l.pauses == nil {
		l.pauses = nativecommon.NewPauseSet()
	}
	if l.emitter == nil {
		l.emitter = events.NoopEmitter{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.nowFn == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
	}
	return l, nil
}

// Ledger returns the ledger account participants must approve.
func (l *Local) Ledger() crypto.Address { return l.ledger }

// SetModulePaused toggles the module-wide pause consulted by participant
// operations.
func (l *Local) SetModulePaused(paused bool) {
	l.pauses.Set(moduleName, paused)
	l.logger.Info("lending module pause updated", "paused", paused)
}

// ModulePaused reports the module-wide pause flag.
func (l *Local) ModulePaused() bool { return l.pauses.IsPaused(moduleName) }

// Close rejects every later call.
func (l *Local) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// scope is the set of collaborators bound to one state transaction.
type scope struct {
	tx      *state.Tx
	bank    *bank.Ledger
	engine  *lending.Engine
	events  *events.Buffer
	touched []uint64
}

func (s *scope) touch(id uint64) { s.touched = append(s.touched, id) }

func (l *Local) open() *scope {
	tx := l.state.Begin()
	ledger := bank.NewLedger(tx)
	factory := vault.NewFactory(tx, ledger)
	buffer := &events.Buffer{}

	eng := lending.NewEngine(l.ledger)
	eng.SetState(tx)
	eng.SetAssets(ledger)
	eng.SetVaults(lending.NewVaultFactory(factory))
	eng.SetPauses(l.pauses)
	eng.SetEmitter(buffer)
	eng.SetNowFunc(l.nowFn)
	factory.SetHook(eng)
	return &scope{tx: tx, bank: ledger, engine: eng, events: buffer}
}

// update runs fn in a fresh transaction and commits only when fn succeeds.
// Buffered events reach the emitter after the commit.
func (l *Local) update(ctx context.Context, op string, fn func(*scope) error, attrs ...attribute.KeyValue) error {
	ctx, span := l.tracer.Start(ctx, "lending."+op, trace.WithAttributes(attrs...))
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	start := time.Now()
	sc := l.open()
	err := fn(sc)
	var pools []*lending.Pool
	if err == nil {
		pools, err = snapshotPools(sc)
	}
	if err == nil {
		err = sc.tx.Commit()
	}
	class := Outcome(err)
	l.metrics.ObserveOperation(op, class, time.Since(start))
	if err != nil {
		sc.tx.Discard()
		sc.events.Reset()
		span.RecordError(err)
		span.SetStatus(codes.Error, class)
		l.logger.Info("lending operation rejected", "operation", op, "class", class, "error", err)
		return err
	}

	emitted := len(sc.events.Events())
	sc.events.Flush(l.emitter)
	for _, pool := range pools {
		l.metrics.RecordPool(pool.ID, pool.Funds.Balance, pool.Funds.LoanedBalance, pool.UniqueUsers)
	}
	span.SetAttributes(attribute.Int("lending.events", emitted))
	l.logger.Debug("lending operation committed", "operation", op, "events", emitted)
	return nil
}

func snapshotPools(sc *scope) ([]*lending.Pool, error) {
	if len(sc.touched) == 0 {
		return nil, nil
	}
	seen := make(map[uint64]struct{}, len(sc.touched))
	out := make([]*lending.Pool, 0, len(sc.touched))
	for _, id := range sc.touched {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		pool, err := sc.engine.Pool(id)
		if err != nil {
			return nil, err
		}
		out = append(out, pool)
	}
	return out, nil
}

// view runs fn against committed state. Nothing it stages is kept.
func (l *Local) view(ctx context.Context, op string, fn func(*scope) error) error {
	ctx, span := l.tracer.Start(ctx, "lending."+op)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	sc := l.open()
	defer sc.tx.Discard()
	if err := fn(sc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Outcome(err))
		return err
	}
	return nil
}

func poolAttr(id uint64) attribute.KeyValue {
	return attribute.Int64("lending.pool", int64(id))
}

// EnsureRegistry initialises the registry with owner unless it already has
// one. The effective owner is returned.
func (l *Local) EnsureRegistry(ctx context.Context, owner crypto.Address) (crypto.Address, error) {
	var current [20]byte
	err := l.update(ctx, "ensure_registry", func(sc *scope) error {
		existing, err := sc.engine.Owner()
		switch {
		case err == nil:
			current = existing
			return nil
		case !errors.Is(err, lending.ErrNotInitialised):
			return err
		}
		if err := sc.engine.InitRegistry(owner); err != nil {
			return err
		}
		current = owner.Raw()
		return nil
	})
	if err != nil {
		return crypto.Address{}, err
	}
	if current != owner.Raw() {
		l.logger.Warn("registry already owned by another account", "owner", crypto.AddressFromRaw(crypto.AccountPrefix, current).String())
	}
	return crypto.AddressFromRaw(crypto.AccountPrefix, current), nil
}

func (l *Local) Owner(ctx context.Context) (crypto.Address, error) {
	var owner [20]byte
	err := l.view(ctx, "owner", func(sc *scope) error {
		var err error
		owner, err = sc.engine.Owner()
		return err
	})
	if err != nil {
		return crypto.Address{}, err
	}
	return crypto.AddressFromRaw(crypto.AccountPrefix, owner), nil
}

func (l *Local) TransferOwnership(ctx context.Context, caller, next crypto.Address) error {
	return l.update(ctx, "transfer_ownership", func(sc *scope) error {
		return sc.engine.TransferOwnership(caller, next)
	})
}

func (l *Local) CreatePool(ctx context.Context, caller crypto.Address, cfg lending.PoolConfig) (uint64, error) {
	var id uint64
	err := l.update(ctx, "create_pool", func(sc *scope) error {
		var err error
		id, err = sc.engine.CreatePool(caller, cfg)
		if err == nil {
			sc.touch(id)
		}
		return err
	}, attribute.String("lending.pool_type", cfg.Type.String()))
	return id, err
}

func (l *Local) EditPool(ctx context.Context, caller crypto.Address, id uint64, cfg lending.PoolConfig) error {
	return l.update(ctx, "edit_pool", func(sc *scope) error {
		sc.touch(id)
		return sc.engine.EditPool(caller, id, cfg)
	}, poolAttr(id))
}

func (l *Local) SetPaused(ctx context.Context, caller crypto.Address, id uint64, paused bool) error {
	return l.update(ctx, "set_paused", func(sc *scope) error {
		return sc.engine.SetPaused(caller, id, paused)
	}, poolAttr(id))
}

func (l *Local) StartInterest(ctx context.Context, caller crypto.Address, id uint64) error {
	return l.update(ctx, "start_interest", func(sc *scope) error {
		return sc.engine.StartInterest(caller, id)
	}, poolAttr(id))
}

func (l *Local) SetWhitelisted(ctx context.Context, caller crypto.Address, id uint64, participant crypto.Address, status bool) error {
	return l.update(ctx, "set_whitelisted", func(sc *scope) error {
		return sc.engine.SetWhitelisted(caller, id, participant, status)
	}, poolAttr(id))
}

func (l *Local) FundRewards(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) error {
	return l.update(ctx, "fund_rewards", func(sc *scope) error {
		sc.touch(id)
		return sc.engine.FundRewards(caller, id, amount)
	}, poolAttr(id))
}

func (l *Local) Deposit(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) error {
	return l.update(ctx, "deposit", func(sc *scope) error {
		sc.touch(id)
		return sc.engine.Deposit(caller, id, amount)
	}, poolAttr(id))
}

func (l *Local) Withdraw(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
	var payout *big.Int
	err := l.update(ctx, "withdraw", func(sc *scope) error {
		sc.touch(id)
		var err error
		payout, err = sc.engine.Withdraw(caller, id, amount)
		return err
	}, poolAttr(id))
	return payout, err
}

func (l *Local) Borrow(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) error {
	return l.update(ctx, "borrow", func(sc *scope) error {
		sc.touch(id)
		return sc.engine.Borrow(caller, id, amount)
	}, poolAttr(id))
}

func (l *Local) Repay(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
	var interest *big.Int
	err := l.update(ctx, "repay", func(sc *scope) error {
		sc.touch(id)
		var err error
		interest, err = sc.engine.Repay(caller, id, amount)
		return err
	}, poolAttr(id))
	return interest, err
}

func (l *Local) ClaimQuarterlyPayout(ctx context.Context, caller crypto.Address, id uint64) (*big.Int, error) {
	var reward *big.Int
	err := l.update(ctx, "claim_quarterly", func(sc *scope) error {
		sc.touch(id)
		var err error
		reward, err = sc.engine.ClaimQuarterlyPayout(caller, id)
		return err
	}, poolAttr(id))
	return reward, err
}

func (l *Local) TransferReceipt(ctx context.Context, caller crypto.Address, id uint64, recipient crypto.Address, amount *big.Int) error {
	return l.update(ctx, "transfer_receipt", func(sc *scope) error {
		sc.touch(id)
		return sc.engine.TransferReceipt(caller, id, recipient, amount)
	}, poolAttr(id))
}

func (l *Local) RegisterAsset(ctx context.Context, asset bank.Asset) error {
	return l.update(ctx, "register_asset", func(sc *scope) error {
		return sc.bank.RegisterAsset(asset)
	}, attribute.String("lending.asset", asset.Symbol))
}

func (l *Local) Mint(ctx context.Context, asset [20]byte, to crypto.Address, amount *big.Int) error {
	return l.update(ctx, "mint", func(sc *scope) error {
		return sc.bank.Mint(asset, to.Raw(), amount)
	})
}

// Approve sets the allowance owner grants the ledger on asset.
func (l *Local) Approve(ctx context.Context, owner crypto.Address, asset [20]byte, amount *big.Int) error {
	return l.update(ctx, "approve", func(sc *scope) error {
		return sc.bank.Approve(asset, owner.Raw(), l.ledger.Raw(), amount)
	})
}

func (l *Local) Balance(ctx context.Context, asset [20]byte, holder crypto.Address) (Balance, error) {
	var out Balance
	err := l.view(ctx, "balance", func(sc *scope) error {
		meta, err := sc.bank.Asset(asset)
		if err != nil {
			return err
		}
		amount, err := sc.bank.BalanceOf(asset, holder.Raw())
		if err != nil {
			return err
		}
		allowance, err := sc.bank.Allowance(asset, holder.Raw(), l.ledger.Raw())
		if err != nil {
			return err
		}
		out = Balance{Asset: *meta, Amount: amount, Allowance: allowance}
		return nil
	})
	return out, err
}

func (l *Local) Pools(ctx context.Context, offset, limit uint64) ([]*lending.Pool, error) {
	var pools []*lending.Pool
	err := l.view(ctx, "pools", func(sc *scope) error {
		var err error
		pools, err = sc.engine.Pools(offset, limit)
		return err
	})
	return pools, err
}

func (l *Local) Pool(ctx context.Context, id uint64) (*lending.Pool, error) {
	var pool *lending.Pool
	err := l.view(ctx, "pool", func(sc *scope) error {
		var err error
		pool, err = sc.engine.Pool(id)
		return err
	})
	return pool, err
}

func (l *Local) Position(ctx context.Context, id uint64, participant crypto.Address) (Position, error) {
	var out Position
	err := l.view(ctx, "position", func(sc *scope) error {
		pos, err := sc.engine.Position(id, participant)
		if err != nil {
			return err
		}
		receipts, err := sc.engine.ReceiptBalance(id, participant)
		if err != nil {
			return err
		}
		outstanding, err := sc.engine.OutstandingInterest(id, participant)
		if err != nil {
			return err
		}
		out = Position{Position: pos, Receipts: receipts, Outstanding: outstanding}
		return nil
	})
	return out, err
}

func (l *Local) Utilisation(ctx context.Context, id uint64, borrow *big.Int) (Utilisation, error) {
	var out Utilisation
	err := l.view(ctx, "utilisation", func(sc *scope) error {
		pool, err := sc.engine.Pool(id)
		if err != nil {
			return err
		}
		current, projected, err := sc.engine.UtilisationPreview(id, borrow)
		if err != nil {
			return err
		}
		out = Utilisation{Current: current, Projected: projected, Max: pool.MaxUtilisation()}
		return nil
	})
	return out, err
}

func (l *Local) Audit(ctx context.Context, id uint64) error {
	return l.view(ctx, "audit", func(sc *scope) error {
		return sc.engine.Audit(id)
	})
}

// Outcome classifies err into a stable label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, lending.ErrAuthorization), errors.Is(err, vault.ErrUnauthorized):
		return "authorization"
	case errors.Is(err, lending.ErrPoolNotFound), errors.Is(err, bank.ErrUnknownAsset):
		return "not_found"
	case errors.Is(err, lending.ErrPoolState):
		return "pool_state"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	case errors.Is(err, lending.ErrTiming):
		return "timing"
	case errors.Is(err, lending.ErrCapacity):
		return "capacity"
	case errors.Is(err, lending.ErrAmount):
		return "amount"
	case errors.Is(err, lending.ErrConsistency):
		return "consistency"
	case errors.Is(err, lending.ErrConfiguration), errors.Is(err, bank.ErrInvalidAsset), errors.Is(err, bank.ErrAssetExists):
		return "configuration"
	case errors.Is(err, lending.ErrInvalidAmount), errors.Is(err, bank.ErrInvalidAmount), errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, bank.ErrInsufficientBalance), errors.Is(err, bank.ErrInsufficientAllowance):
		return "funds"
	case errors.Is(err, lending.ErrReentrant):
		return "reentrant"
	default:
		return "internal"
	}
}
