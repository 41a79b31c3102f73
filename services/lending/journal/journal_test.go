package journal

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"poolledger/core/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	j, err := Open(dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalStoresAndQueriesByPool(t *testing.T) {
	j := openTestJournal(t)
	var alice, bob [20]byte
	alice[19], bob[19] = 0x10, 0x20

	j.Emit(events.LendingDeposited{Pool: 1, Account: alice, Amount: big.NewInt(500)})
	j.Emit(events.LendingBorrowed{Pool: 1, Account: bob, Amount: big.NewInt(100)})
	j.Emit(events.LendingDeposited{Pool: 2, Account: alice, Amount: big.NewInt(7)})

	records, err := j.PoolEvents(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, events.TypeLendingBorrowed, records[0].Type)
	require.Equal(t, uint64(2), records[0].Sequence)
	require.Equal(t, "100", records[0].Amount)
	require.Equal(t, events.TypeLendingDeposited, records[1].Type)
	require.Equal(t, "500", records[1].Attributes[events.AttrAmount])
	require.NotEqual(t, uuid.Nil, records[1].ID)

	account := records[1].Account
	byAccount, err := j.AccountEvents(context.Background(), account, 0)
	require.NoError(t, err)
	require.Len(t, byAccount, 2)
	require.Equal(t, uint64(2), *byAccount[0].Pool)
}

func TestAccountEventsIncludeIncomingTransfers(t *testing.T) {
	j := openTestJournal(t)
	var alice, carol [20]byte
	alice[19], carol[19] = 0x10, 0x30

	j.Emit(events.LendingDeposited{Pool: 1, Account: alice, Amount: big.NewInt(500)})
	j.Emit(events.LendingStakeTransferred{Pool: 1, From: alice, To: carol, Amount: big.NewInt(200)})

	transfers, err := j.PoolEvents(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	sender, recipient := transfers[0].Account, transfers[0].Counterparty
	require.NotEmpty(t, recipient)
	require.NotEqual(t, sender, recipient)

	incoming, err := j.AccountEvents(context.Background(), recipient, 0)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, events.TypeLendingStakeTransferred, incoming[0].Type)
	require.Equal(t, "200", incoming[0].Amount)

	outgoing, err := j.AccountEvents(context.Background(), sender, 0)
	require.NoError(t, err)
	require.Len(t, outgoing, 2)
}

func TestJournalSequenceSurvivesReopen(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	first, err := Open(dsn, nil)
	require.NoError(t, err)
	first.Emit(events.LendingPoolPaused{Pool: 3, Paused: true})

	second, err := Open(dsn, nil)
	require.NoError(t, err)
	defer second.Close()
	second.Emit(events.LendingPoolPaused{Pool: 3, Paused: false})
	require.NoError(t, first.Close())

	records, err := second.PoolEvents(context.Background(), 3, 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint64(2), records[0].Sequence)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ", nil)
	require.Error(t, err)
}
