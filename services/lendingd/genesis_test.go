package main

import (
	"context"
	"testing"

	"poolledger/config"
	"poolledger/core/state"
	"poolledger/crypto"
	"poolledger/services/lending/engine"
	"poolledger/storage"
)

func testAccount(b byte) crypto.Address {
	var raw [20]byte
	raw[0] = 0xAC
	raw[19] = b
	return crypto.AddressFromRaw(crypto.AccountPrefix, raw)
}

func testGenesis() *config.Genesis {
	var raw [20]byte
	raw[0] = 0xA5
	asset := engine.FormatAsset(raw)
	return &config.Genesis{
		Owner:  testAccount(0x01).String(),
		Assets: []config.Asset{{Address: asset, Name: "Pool Dollar", Symbol: "PUSD", Decimals: 6}},
		Mints:  []config.Mint{{Asset: asset, To: testAccount(0x10).String(), Amount: "2500"}},
		Pools: []config.Pool{
			{Name: "credit", Type: "loan", APY: 1000, Asset: asset, MaxUtilisation: 75},
			{Name: "stake", Type: "staking", APY: 500, Asset: asset, Duration: 86400, EndTime: 4102444800},
		},
	}
}

func TestApplyGenesisSeedsEmptyRegistry(t *testing.T) {
	ctx := context.Background()
	manager := state.NewManager(storage.NewMemDB())
	rt, err := engine.NewLocal(manager, engine.Config{Ledger: testAccount(0xEE)})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	gen := testGenesis()
	if err := applyGenesis(ctx, rt, gen, nil); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	owner, err := rt.Owner(ctx)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if !owner.Equal(testAccount(0x01)) {
		t.Fatalf("unexpected owner %s", owner)
	}
	pools, err := rt.Pools(ctx, 0, 10)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	asset, err := engine.ParseAsset(gen.Assets[0].Address)
	if err != nil {
		t.Fatalf("parse asset: %v", err)
	}
	bal, err := rt.Balance(ctx, asset, testAccount(0x10))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Amount.String() != "2500" {
		t.Fatalf("unexpected minted balance %s", bal.Amount)
	}
}

func TestApplyGenesisSkipsInitialisedRegistry(t *testing.T) {
	ctx := context.Background()
	manager := state.NewManager(storage.NewMemDB())
	rt, err := engine.NewLocal(manager, engine.Config{Ledger: testAccount(0xEE)})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	gen := testGenesis()
	if err := applyGenesis(ctx, rt, gen, nil); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}

	gen.ModulePaused = true
	gen.Owner = testAccount(0x02).String()
	if err := applyGenesis(ctx, rt, gen, nil); err != nil {
		t.Fatalf("reapply genesis: %v", err)
	}
	owner, err := rt.Owner(ctx)
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if !owner.Equal(testAccount(0x01)) {
		t.Fatalf("owner replaced on restart: %s", owner)
	}
	pools, err := rt.Pools(ctx, 0, 10)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("pools duplicated on restart: %d", len(pools))
	}
	if !rt.ModulePaused() {
		t.Fatalf("module pause should follow the genesis flag")
	}
}

func TestApplyGenesisRejectsBadPool(t *testing.T) {
	ctx := context.Background()
	rt, err := engine.NewLocal(state.NewManager(storage.NewMemDB()), engine.Config{Ledger: testAccount(0xEE)})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	gen := testGenesis()
	gen.Pools = append(gen.Pools, config.Pool{Name: "broken", Type: "margin", Asset: gen.Assets[0].Address})
	if err := applyGenesis(ctx, rt, gen, nil); err == nil {
		t.Fatalf("expected unknown pool type to fail")
	}
}

func TestSampleGenesisApplies(t *testing.T) {
	gen, err := config.LoadGenesis("genesis.toml")
	if err != nil {
		t.Fatalf("load sample genesis: %v", err)
	}
	rt, err := engine.NewLocal(state.NewManager(storage.NewMemDB()), engine.Config{Ledger: testAccount(0xEE)})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	if err := applyGenesis(context.Background(), rt, gen, nil); err != nil {
		t.Fatalf("apply sample genesis: %v", err)
	}
	pools, err := rt.Pools(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("pools: %v", err)
	}
	if len(pools) != len(gen.Pools) {
		t.Fatalf("expected %d pools, got %d", len(gen.Pools), len(pools))
	}
}
