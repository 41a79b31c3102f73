package lending

import (
	"errors"
	"math/big"
	"testing"

	"poolledger/core/events"
	"poolledger/core/state"
	"poolledger/crypto"
	"poolledger/native/bank"
	"poolledger/native/vault"
	"poolledger/storage"
)

const (
	day       = 24 * 60 * 60
	startTime = int64(1_700_000_000)
)

type harness struct {
	t       *testing.T
	tx      *state.Tx
	bank    *bank.Ledger
	factory *vault.Factory
	engine  *Engine
	events  *events.Buffer
	now     int64
	ledger  crypto.Address
	owner   crypto.Address
	asset   [20]byte
}

func account(b byte) crypto.Address {
	var raw [20]byte
	raw[0] = 0xAC
	raw[19] = b
	return crypto.AddressFromRaw(crypto.AccountPrefix, raw)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	h := &harness{
		t:      t,
		tx:     tx,
		bank:   bank.NewLedger(tx),
		events: &events.Buffer{},
		now:    startTime,
		ledger: account(0xEE),
		owner:  account(0x01),
	}
	h.asset[0] = 0xA5
	if err := h.bank.RegisterAsset(bank.Asset{Address: h.asset, Name: "Pool Dollar", Symbol: "PUSD", Decimals: 6}); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	h.factory = vault.NewFactory(tx, h.bank)
	h.engine = NewEngine(h.ledger)
	h.engine.SetState(tx)
	h.engine.SetAssets(h.bank)
	h.engine.SetVaults(NewVaultFactory(h.factory))
	h.engine.SetEmitter(h.events)
	h.engine.SetNowFunc(func() int64 { return h.now })
	h.factory.SetHook(h.engine)
	if err := h.engine.InitRegistry(h.owner); err != nil {
		t.Fatalf("init registry: %v", err)
	}
	return h
}

func (h *harness) advance(seconds int64) { h.now += seconds }

// fund mints amount to addr and approves the ledger to pull it.
func (h *harness) fund(addr crypto.Address, amount int64) {
	h.t.Helper()
	if err := h.bank.Mint(h.asset, addr.Raw(), big.NewInt(amount)); err != nil {
		h.t.Fatalf("mint: %v", err)
	}
	if err := h.bank.Approve(h.asset, addr.Raw(), h.ledger.Raw(), bank.MaxAllowance()); err != nil {
		h.t.Fatalf("approve: %v", err)
	}
}

func (h *harness) balance(addr crypto.Address) int64 {
	h.t.Helper()
	bal, err := h.bank.BalanceOf(h.asset, addr.Raw())
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return bal.Int64()
}

func (h *harness) stakingConfig(name string) PoolConfig {
	return PoolConfig{
		Name:      name,
		Type:      PoolTypeStaking,
		APY:       1000,
		Asset:     h.asset,
		Duration:  30 * day,
		StartTime: uint64(h.now),
		EndTime:   uint64(h.now + 7*day),
	}
}

func (h *harness) loanConfig(name string, maxUtilisation uint64) PoolConfig {
	return PoolConfig{
		Name:           name,
		Type:           PoolTypeLoan,
		APY:            1000,
		Asset:          h.asset,
		MaxUtilisation: maxUtilisation,
	}
}

func (h *harness) createPool(cfg PoolConfig) uint64 {
	h.t.Helper()
	id, err := h.engine.CreatePool(h.owner, cfg)
	if err != nil {
		h.t.Fatalf("create pool: %v", err)
	}
	return id
}

func (h *harness) pool(id uint64) *Pool {
	h.t.Helper()
	pool, err := h.engine.Pool(id)
	if err != nil {
		h.t.Fatalf("pool: %v", err)
	}
	return pool
}

func (h *harness) position(id uint64, addr crypto.Address) *Position {
	h.t.Helper()
	pos, err := h.engine.Position(id, addr)
	if err != nil {
		h.t.Fatalf("position: %v", err)
	}
	return pos
}

func (h *harness) receipts(id uint64, addr crypto.Address) int64 {
	h.t.Helper()
	bal, err := h.engine.ReceiptBalance(id, addr)
	if err != nil {
		h.t.Fatalf("receipt balance: %v", err)
	}
	return bal.Int64()
}

func (h *harness) audit(id uint64) {
	h.t.Helper()
	if err := h.engine.Audit(id); err != nil {
		h.t.Fatalf("audit pool %d: %v", id, err)
	}
}

func (h *harness) deposit(id uint64, addr crypto.Address, amount int64) {
	h.t.Helper()
	if err := h.engine.Deposit(addr, id, big.NewInt(amount)); err != nil {
		h.t.Fatalf("deposit: %v", err)
	}
}

func (h *harness) countEvents(eventType string) int {
	n := 0
	for _, evt := range h.events.Events() {
		if evt.EventType() == eventType {
			n++
		}
	}
	return n
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
