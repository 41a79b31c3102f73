package lending

import (
	"encoding/binary"
	"fmt"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	registryKey       = []byte("lending/registry")
	poolPrefix        = []byte("lending/pool/")
	positionPrefix    = []byte("lending/position/")
	vaultIndexPrefix  = []byte("lending/vault/")
	participantPrefix = []byte("lending/participants/")
)

// registryMeta is the singleton record behind the registry.
type registryMeta struct {
	Owner     [20]byte
	PoolCount uint64
}

// vaultBinding is stored under a recognised vault address.
type vaultBinding struct {
	Pool uint64
}

func poolKey(id uint64) []byte {
	key := make([]byte, len(poolPrefix)+8)
	copy(key, poolPrefix)
	binary.BigEndian.PutUint64(key[len(poolPrefix):], id)
	return key
}

func positionKey(id uint64, participant [20]byte) []byte {
	key := make([]byte, 0, len(positionPrefix)+8+20)
	key = append(key, positionPrefix...)
	key = binary.BigEndian.AppendUint64(key, id)
	return append(key, participant[:]...)
}

func participantsKey(id uint64) []byte {
	key := make([]byte, len(participantPrefix)+8)
	copy(key, participantPrefix)
	binary.BigEndian.PutUint64(key[len(participantPrefix):], id)
	return key
}

func vaultIndexKey(vault [20]byte) []byte {
	key := make([]byte, 0, len(vaultIndexPrefix)+20)
	key = append(key, vaultIndexPrefix...)
	return append(key, vault[:]...)
}

func (e *Engine) loadRegistry() (*registryMeta, error) {
	meta := new(registryMeta)
	ok, err := e.state.KVGet(registryKey, meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialised
	}
	return meta, nil
}

func (e *Engine) storeRegistry(meta *registryMeta) error {
	return e.state.KVPut(registryKey, meta)
}

func (e *Engine) loadPool(id uint64) (*Pool, error) {
	pool := new(Pool)
	ok, err := e.state.KVGet(poolKey(id), pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
	}
	pool.normalize()
	return pool, nil
}

func (e *Engine) storePool(pool *Pool) error {
	return e.state.KVPut(poolKey(pool.ID), pool)
}

// loadPosition returns the stored position or a fresh empty one.
func (e *Engine) loadPosition(id uint64, participant [20]byte) (*Position, error) {
	pos := new(Position)
	ok, err := e.state.KVGet(positionKey(id, participant), pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		pos = &Position{Pool: id, Participant: participant}
	}
	pos.normalize()
	return pos, nil
}

func (e *Engine) storePosition(pos *Position) error {
	return e.state.KVPut(positionKey(pos.Pool, pos.Participant), pos)
}

// participants lists every address that ever held a position in the pool.
func (e *Engine) participants(id uint64) ([][20]byte, error) {
	var list [][20]byte
	if _, err := e.state.KVGet(participantsKey(id), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (e *Engine) trackParticipant(id uint64, participant [20]byte) error {
	list, err := e.participants(id)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == participant {
			return nil
		}
	}
	list = append(list, participant)
	return e.state.KVPut(participantsKey(id), list)
}

func (e *Engine) bindVault(vault [20]byte, id uint64) error {
	return e.state.KVPut(vaultIndexKey(vault), &vaultBinding{Pool: id})
}

// recognisedVault reports the pool bound to vault, if any.
func (e *Engine) recognisedVault(vault [20]byte) (uint64, bool, error) {
	binding := new(vaultBinding)
	ok, err := e.state.KVGet(vaultIndexKey(vault), binding)
	if err != nil || !ok {
		return 0, false, err
	}
	return binding.Pool, true, nil
}
