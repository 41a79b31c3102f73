package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"poolledger/storage"
)

var (
	// ErrTxClosed is returned when a transaction is used after Commit or Discard.
	ErrTxClosed = errors.New("state: transaction closed")
)

// Manager owns the backing database and hands out write transactions. Reads
// outside a transaction observe the last committed state only.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a buffered write transaction. Nothing reaches the database until
// Commit succeeds.
func (m *Manager) Begin() *Tx {
	return &Tx{
		db:      m.db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

// KVGet decodes the committed value stored under key into out.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	return get(m.db, key, out)
}

// Tx is a copy-on-write overlay over the committed database. Reads see the
// transaction's own writes first.
type Tx struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

// KVPut RLP-encodes value and stages it under key.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if tx.closed {
		return ErrTxClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("kv: encode %q: %w", key, err)
	}
	delete(tx.deletes, string(key))
	tx.writes[string(key)] = encoded
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if tx.closed {
		return false, ErrTxClosed
	}
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	if _, deleted := tx.deletes[string(key)]; deleted {
		return false, nil
	}
	if data, ok := tx.writes[string(key)]; ok {
		return decode(data, out)
	}
	return get(tx.db, key, out)
}

// KVDelete stages the removal of key.
func (tx *Tx) KVDelete(key []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	delete(tx.writes, string(key))
	tx.deletes[string(key)] = struct{}{}
	return nil
}

// Pending reports the number of staged mutations.
func (tx *Tx) Pending() int {
	return len(tx.writes) + len(tx.deletes)
}

// Commit writes every staged mutation as one atomic batch.
func (tx *Tx) Commit() error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.closed = true
	if len(tx.writes) == 0 && len(tx.deletes) == 0 {
		return nil
	}
	batch := tx.db.NewBatch()
	// Deterministic ordering keeps batches reproducible across runs.
	keys := make([]string, 0, len(tx.writes))
	for key := range tx.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		batch.Put([]byte(key), tx.writes[key])
	}
	removed := make([]string, 0, len(tx.deletes))
	for key := range tx.deletes {
		removed = append(removed, key)
	}
	sort.Strings(removed)
	for _, key := range removed {
		batch.Delete([]byte(key))
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Discard drops every staged mutation.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.writes = nil
	tx.deletes = nil
}

func get(db storage.Database, key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return decode(data, out)
}

func decode(data []byte, out interface{}) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}
