package lending

import (
	"math/big"
	"time"

	"poolledger/core/events"
	"poolledger/crypto"
	nativecommon "poolledger/native/common"
)

const moduleName = "lending"

// Engine orchestrates pool registry, position ledger and custody flows. An
// engine is bound to one state view; the hosting runtime builds one per
// atomic call.
type Engine struct {
	state    engineState
	address  [20]byte
	assets   AssetLedger
	vaults   VaultFactory
	pauses   nativecommon.PauseView
	emitter  events.Emitter
	nowFn    func() int64
	inflight map[uint64]struct{}
}

// NewEngine constructs an engine acting as the ledger account addr. The
// ledger address is the spender for every allowance it consumes and the
// controller of every vault it creates.
func NewEngine(addr crypto.Address) *Engine {
	return &Engine{
		address:  addr.Raw(),
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		inflight: make(map[uint64]struct{}),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets configures the base asset ledger.
func (e *Engine) SetAssets(assets AssetLedger) {
	if e == nil {
		return
	}
	e.assets = assets
}

// SetVaults configures the vault factory.
func (e *Engine) SetVaults(vaults VaultFactory) {
	if e == nil {
		return
	}
	e.vaults = vaults
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used for notifications.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used for timing checks and accrual.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// Address returns the ledger account.
func (e *Engine) Address() [20]byte { return e.address }

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.assets == nil || e.vaults == nil {
		return errNilCollaborator
	}
	return nil
}

// enter marks the pool in flight until the returned release is called.
func (e *Engine) enter(id uint64) (func(), error) {
	if _, busy := e.inflight[id]; busy {
		return nil, ErrReentrant
	}
	e.inflight[id] = struct{}{}
	return func() { delete(e.inflight, id) }, nil
}

// participantOp runs the common prologue for participant operations.
func (e *Engine) participantOp(id uint64, amount *big.Int, needAmount bool) (func(), error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if needAmount && (amount == nil || amount.Sign() <= 0) {
		return nil, ErrInvalidAmount
	}
	return e.enter(id)
}

// markUser flags the position as active, counting it once per pool.
func (e *Engine) markUser(pool *Pool, pos *Position) error {
	if pos.IsPoolUser {
		return nil
	}
	pos.IsPoolUser = true
	pool.UniqueUsers++
	return e.trackParticipant(pool.ID, pos.Participant)
}

// settleIfEmpty drops the position from the active set once its amount is
// back to zero. Paid-out counters are kept so rewards are never paid twice.
func settleIfEmpty(pool *Pool, pos *Position) {
	if pos.Transaction.Amount.Sign() != 0 {
		return
	}
	pos.Transaction.Type = TxNone
	pos.Transaction.PendingInterest = big.NewInt(0)
	if pos.IsPoolUser {
		pos.IsPoolUser = false
		if pool.UniqueUsers > 0 {
			pool.UniqueUsers--
		}
	}
}
