package vault

import (
	"errors"
	"math/big"
	"testing"

	"poolledger/core/state"
	"poolledger/native/bank"
	"poolledger/storage"
)

type recordingHook struct {
	calls []hookCall
	err   error
}

type hookCall struct {
	vault    [20]byte
	pool     uint64
	from, to [20]byte
	amount   *big.Int
}

func (h *recordingHook) OnReceiptTransfer(vault [20]byte, poolID uint64, from, to [20]byte, amount *big.Int) error {
	h.calls = append(h.calls, hookCall{vault: vault, pool: poolID, from: from, to: to, amount: amount})
	return h.err
}

type fixture struct {
	tx      *state.Tx
	assets  *bank.Ledger
	factory *Factory
	ledger  [20]byte
	asset   [20]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	assets := bank.NewLedger(tx)
	f := &fixture{tx: tx, assets: assets, factory: NewFactory(tx, assets)}
	f.ledger[0] = 0x11
	f.asset[0] = 0x22
	if err := assets.RegisterAsset(bank.Asset{Address: f.asset, Symbol: "TST", Decimals: 18}); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	return f
}

func holder(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestCreateVaultIsDeterministicAndUnique(t *testing.T) {
	f := newFixture(t)
	addr, err := f.factory.CreateVault(f.ledger, f.asset, 18, 0)
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	if addr != DeriveAddress(f.ledger, f.asset, 0) {
		t.Fatalf("vault address not derived from tuple")
	}
	if other := DeriveAddress(f.ledger, f.asset, 1); other == addr {
		t.Fatalf("pool id must affect address")
	}
	if _, err := f.factory.CreateVault(f.ledger, f.asset, 18, 0); !errors.Is(err, ErrVaultExists) {
		t.Fatalf("expected ErrVaultExists, got %v", err)
	}
	v, err := f.factory.Open(addr)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	allowance, err := v.Allowance()
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Cmp(maxAllowance()) != 0 {
		t.Fatalf("expected unlimited allowance, got %s", allowance)
	}
}

func TestIssueRedeemRequireLedger(t *testing.T) {
	f := newFixture(t)
	addr, _ := f.factory.CreateVault(f.ledger, f.asset, 18, 0)
	v, _ := f.factory.Open(addr)

	if err := v.Issue(holder(9), holder(1), big.NewInt(5)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := v.Issue(f.ledger, holder(1), big.NewInt(5)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := v.Redeem(f.ledger, holder(1), big.NewInt(6)); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("expected ErrInsufficientStake, got %v", err)
	}
	if err := v.Redeem(f.ledger, holder(1), big.NewInt(2)); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	supply, _ := v.TotalSupply()
	bal, _ := v.BalanceOf(holder(1))
	if supply.Int64() != 3 || bal.Int64() != 3 {
		t.Fatalf("supply/balance = %s/%s, want 3/3", supply, bal)
	}
}

func TestTransferNotifiesHookAfterBookkeeping(t *testing.T) {
	f := newFixture(t)
	hook := &recordingHook{}
	f.factory.SetHook(hook)
	addr, _ := f.factory.CreateVault(f.ledger, f.asset, 18, 4)
	v, _ := f.factory.Open(addr)
	if err := v.Issue(f.ledger, holder(1), big.NewInt(10)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := v.Transfer(holder(1), holder(2), big.NewInt(4)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(hook.calls) != 1 {
		t.Fatalf("expected one hook call, got %d", len(hook.calls))
	}
	call := hook.calls[0]
	if call.vault != addr || call.pool != 4 || call.amount.Int64() != 4 {
		t.Fatalf("unexpected hook call %+v", call)
	}
	to, _ := v.BalanceOf(holder(2))
	if to.Int64() != 4 {
		t.Fatalf("recipient balance = %s, want 4", to)
	}
}

func TestTransferPropagatesHookError(t *testing.T) {
	f := newFixture(t)
	sentinel := errors.New("rejected")
	f.factory.SetHook(&recordingHook{err: sentinel})
	addr, _ := f.factory.CreateVault(f.ledger, f.asset, 18, 0)
	v, _ := f.factory.Open(addr)
	if err := v.Issue(f.ledger, holder(1), big.NewInt(10)); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := v.Transfer(holder(1), holder(2), big.NewInt(4)); !errors.Is(err, sentinel) {
		t.Fatalf("expected hook error, got %v", err)
	}
}

func TestResetAuthorizationRestoresAllowance(t *testing.T) {
	f := newFixture(t)
	addr, _ := f.factory.CreateVault(f.ledger, f.asset, 18, 0)
	v, _ := f.factory.Open(addr)
	if err := f.assets.Mint(f.asset, addr, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.assets.Approve(f.asset, addr, f.ledger, big.NewInt(1)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := v.ResetAuthorization(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	allowance, _ := v.Allowance()
	if allowance.Cmp(maxAllowance()) != 0 {
		t.Fatalf("allowance not restored: %s", allowance)
	}
	holdings, _ := v.Holdings()
	if holdings.Int64() != 100 {
		t.Fatalf("holdings = %s, want 100", holdings)
	}
}
