package state

import (
	"errors"
	"math/big"
	"testing"

	"poolledger/storage"
)

type record struct {
	Name   string
	Amount *big.Int
	Flag   bool
}

func TestTxReadsOwnWrites(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	tx := mgr.Begin()
	if err := tx.KVPut([]byte("k"), &record{Name: "a", Amount: big.NewInt(7), Flag: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var got record
	ok, err := tx.KVGet([]byte("k"), &got)
	if err != nil || !ok {
		t.Fatalf("expected staged value, ok=%v err=%v", ok, err)
	}
	if got.Amount.Cmp(big.NewInt(7)) != 0 || !got.Flag {
		t.Fatalf("unexpected record %+v", got)
	}
	if ok, _ := mgr.KVGet([]byte("k"), new(record)); ok {
		t.Fatalf("uncommitted write leaked into committed state")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok, _ := mgr.KVGet([]byte("k"), new(record)); !ok {
		t.Fatalf("expected committed value")
	}
}

func TestTxDiscardLeavesStateUntouched(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	seed := mgr.Begin()
	if err := seed.KVPut([]byte("k"), uint64(1)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := seed.Commit(); err != nil {
		t.Fatalf("commit seed: %v", err)
	}

	tx := mgr.Begin()
	if err := tx.KVPut([]byte("k"), uint64(2)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tx.KVDelete([]byte("other")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tx.Discard()

	var value uint64
	if _, err := mgr.KVGet([]byte("k"), &value); err != nil {
		t.Fatalf("get: %v", err)
	}
	if value != 1 {
		t.Fatalf("expected discarded write to vanish, got %d", value)
	}
	if err := tx.KVPut([]byte("k"), uint64(3)); !errors.Is(err, ErrTxClosed) {
		t.Fatalf("expected ErrTxClosed, got %v", err)
	}
}

func TestTxDeleteShadowsCommittedValue(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	seed := mgr.Begin()
	_ = seed.KVPut([]byte("k"), uint64(5))
	if err := seed.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx := mgr.Begin()
	if err := tx.KVDelete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := tx.KVGet([]byte("k"), new(uint64)); ok {
		t.Fatalf("deleted key still visible inside tx")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok, _ := mgr.KVGet([]byte("k"), new(uint64)); ok {
		t.Fatalf("deleted key still committed")
	}
}
