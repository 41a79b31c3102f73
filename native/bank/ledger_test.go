package bank

import (
	"errors"
	"math/big"
	"testing"

	"poolledger/core/state"
	"poolledger/storage"
)

func newTestLedger(t *testing.T) (*Ledger, [20]byte) {
	t.Helper()
	tx := state.NewManager(storage.NewMemDB()).Begin()
	ledger := NewLedger(tx)
	var asset [20]byte
	asset[0] = 0xAA
	if err := ledger.RegisterAsset(Asset{Address: asset, Name: "Test Dollar", Symbol: "tusd", Decimals: 6}); err != nil {
		t.Fatalf("register asset: %v", err)
	}
	return ledger, asset
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func TestRegisterAssetNormalizesAndRejectsDuplicates(t *testing.T) {
	ledger, asset := newTestLedger(t)
	meta, err := ledger.Asset(asset)
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if meta.Symbol != "TUSD" || meta.Decimals != 6 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if err := ledger.RegisterAsset(Asset{Address: asset, Symbol: "X"}); !errors.Is(err, ErrAssetExists) {
		t.Fatalf("expected ErrAssetExists, got %v", err)
	}
	if err := ledger.RegisterAsset(Asset{Symbol: "X"}); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected ErrInvalidAsset for zero address, got %v", err)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	ledger, asset := newTestLedger(t)
	alice, bob := addr(1), addr(2)
	if err := ledger.Mint(asset, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(asset, alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := ledger.BalanceOf(asset, alice)
	b, _ := ledger.BalanceOf(asset, bob)
	if a.Int64() != 60 || b.Int64() != 40 {
		t.Fatalf("balances = %s/%s, want 60/40", a, b)
	}
	if err := ledger.Transfer(asset, bob, alice, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	supply, _ := ledger.TotalSupply(asset)
	if supply.Int64() != 100 {
		t.Fatalf("supply = %s, want 100", supply)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, asset := newTestLedger(t)
	owner, spender, sink := addr(1), addr(2), addr(3)
	if err := ledger.Mint(asset, owner, big.NewInt(50)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.TransferFrom(asset, spender, owner, sink, big.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := ledger.Approve(asset, owner, spender, big.NewInt(30)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(asset, spender, owner, sink, big.NewInt(20)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	left, _ := ledger.Allowance(asset, owner, spender)
	if left.Int64() != 10 {
		t.Fatalf("allowance = %s, want 10", left)
	}
}

func TestMintRejectsOverflow(t *testing.T) {
	ledger, asset := newTestLedger(t)
	if err := ledger.Mint(asset, addr(1), MaxAllowance()); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := ledger.Mint(asset, addr(2), big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	tooLarge := new(big.Int).Lsh(big.NewInt(1), 256)
	if err := ledger.Approve(asset, addr(1), addr(2), tooLarge); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow on approve, got %v", err)
	}
}

func TestUnknownAsset(t *testing.T) {
	ledger, _ := newTestLedger(t)
	if err := ledger.Mint(addr(9), addr(1), big.NewInt(1)); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
}
