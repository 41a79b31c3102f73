package events

import (
	"math/big"
	"testing"

	"poolledger/crypto"
)

func TestLendingDepositedAttributes(t *testing.T) {
	var account [20]byte
	account[19] = 0x01
	evt := LendingDeposited{Pool: 3, Account: account, Amount: big.NewInt(1500)}.Event()
	if evt.Type != TypeLendingDeposited {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attr(AttrPool) != "3" || evt.Attr(AttrAmount) != "1500" {
		t.Fatalf("unexpected attributes %v", evt.Attributes)
	}
	want := crypto.AddressFromRaw(crypto.AccountPrefix, account).String()
	if evt.Attr(AttrAccount) != want {
		t.Fatalf("account attr = %s, want %s", evt.Attr(AttrAccount), want)
	}
}

func TestBufferFlushPreservesOrder(t *testing.T) {
	buf := &Buffer{}
	buf.Emit(LendingPoolPaused{Pool: 1, Paused: true})
	buf.Emit(LendingPoolPaused{Pool: 1, Paused: false})

	var sink Buffer
	buf.Flush(&sink)
	if len(buf.Events()) != 0 {
		t.Fatalf("flush must empty the buffer")
	}
	got := sink.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Event().Attr("paused") != "true" || got[1].Event().Attr("paused") != "false" {
		t.Fatalf("events flushed out of order")
	}
}

func TestRewardHarvestedOmitsZeroQuarters(t *testing.T) {
	evt := LendingRewardHarvested{Pool: 0, Amount: big.NewInt(5), Duration: 60}.Event()
	if _, ok := evt.Attributes["quarters"]; ok {
		t.Fatalf("quarters attribute should be omitted when zero")
	}
	if evt.Attr("duration") != "60" {
		t.Fatalf("unexpected duration %s", evt.Attr("duration"))
	}
}
