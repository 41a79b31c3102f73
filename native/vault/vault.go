package vault

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"lukechampine.com/blake3"
)

var (
	ErrVaultExists       = errors.New("vault: already exists")
	ErrVaultNotFound     = errors.New("vault: not found")
	ErrUnauthorized      = errors.New("vault: caller is not the controlling ledger")
	ErrInvalidAmount     = errors.New("vault: amount must be positive")
	ErrInsufficientStake = errors.New("vault: insufficient receipt balance")
	ErrSelfTransfer      = errors.New("vault: sender and recipient must differ")
	ErrOverflow          = errors.New("vault: receipt supply exceeds 256 bits")
)

type kvState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// AssetLedger is the slice of the base asset ledger a vault needs to manage
// the allowance it grants its controlling ledger.
type AssetLedger interface {
	BalanceOf(asset, holder [20]byte) (*big.Int, error)
	Allowance(asset, owner, spender [20]byte) (*big.Int, error)
	Approve(asset, owner, spender [20]byte, amount *big.Int) error
}

// TransferHook receives receipt movements between holders that did not go
// through the controlling ledger.
type TransferHook interface {
	OnReceiptTransfer(vault [20]byte, poolID uint64, from, to [20]byte, amount *big.Int) error
}

// Record is the persisted identity of a vault.
type Record struct {
	Address  [20]byte
	Ledger   [20]byte
	Asset    [20]byte
	PoolID   uint64
	Decimals uint8
}

// Factory creates and opens per-pool vaults.
type Factory struct {
	st     kvState
	assets AssetLedger
	hook   TransferHook
}

// NewFactory binds a factory to state and the base asset ledger.
func NewFactory(st kvState, assets AssetLedger) *Factory {
	return &Factory{st: st, assets: assets}
}

// SetHook configures the receiver for holder-initiated receipt transfers.
func (f *Factory) SetHook(hook TransferHook) {
	if f == nil {
		return
	}
	f.hook = hook
}

// DeriveAddress returns the deterministic vault address for the tuple.
func DeriveAddress(ledger, asset [20]byte, poolID uint64) [20]byte {
	var seed [48]byte
	copy(seed[:20], ledger[:])
	copy(seed[20:40], asset[:])
	binary.BigEndian.PutUint64(seed[40:], poolID)
	sum := blake3.Sum256(seed[:])
	var out [20]byte
	copy(out[:], sum[:20])
	return out
}

// CreateVault registers a vault for poolID and grants the ledger an unlimited
// allowance over the vault's asset holdings.
func (f *Factory) CreateVault(ledger, asset [20]byte, decimals uint8, poolID uint64) ([20]byte, error) {
	addr := DeriveAddress(ledger, asset, poolID)
	exists, err := f.st.KVGet(recordKey(addr), new(Record))
	if err != nil {
		return [20]byte{}, err
	}
	if exists {
		return [20]byte{}, fmt.Errorf("%w: pool %d", ErrVaultExists, poolID)
	}
	rec := Record{Address: addr, Ledger: ledger, Asset: asset, PoolID: poolID, Decimals: decimals}
	if err := f.st.KVPut(recordKey(addr), &rec); err != nil {
		return [20]byte{}, err
	}
	if err := f.assets.Approve(asset, addr, ledger, maxAllowance()); err != nil {
		return [20]byte{}, err
	}
	return addr, nil
}

// Open loads the vault stored at addr.
func (f *Factory) Open(addr [20]byte) (*Vault, error) {
	rec := new(Record)
	ok, err := f.st.KVGet(recordKey(addr), rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrVaultNotFound
	}
	return &Vault{st: f.st, assets: f.assets, hook: f.hook, rec: *rec}, nil
}

// Vault custodies one pool's base asset and keeps the receipt token ledger
// for that pool.
type Vault struct {
	st     kvState
	assets AssetLedger
	hook   TransferHook
	rec    Record
}

// Record returns the vault identity.
func (v *Vault) Record() Record { return v.rec }

// Address returns the vault address.
func (v *Vault) Address() [20]byte { return v.rec.Address }

// Issue mints receipt tokens to holder. Only the controlling ledger may issue.
func (v *Vault) Issue(caller, to [20]byte, amount *big.Int) error {
	if caller != v.rec.Ledger {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	supply, err := v.TotalSupply()
	if err != nil {
		return err
	}
	supply = new(big.Int).Add(supply, amount)
	if _, overflow := uint256.FromBig(supply); overflow {
		return ErrOverflow
	}
	balance, err := v.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := v.storeAmount(receiptKey(v.rec.Address, to), new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return v.storeAmount(supplyKey(v.rec.Address), supply)
}

// Redeem burns receipt tokens held by from. Only the controlling ledger may
// redeem.
func (v *Vault) Redeem(caller, from [20]byte, amount *big.Int) error {
	if caller != v.rec.Ledger {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := v.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientStake, balance, amount)
	}
	supply, err := v.TotalSupply()
	if err != nil {
		return err
	}
	if err := v.storeAmount(receiptKey(v.rec.Address, from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return v.storeAmount(supplyKey(v.rec.Address), new(big.Int).Sub(supply, amount))
}

// Transfer moves receipt tokens directly between holders and notifies the
// hook once the vault's own bookkeeping reflects the move.
func (v *Vault) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSelfTransfer
	}
	fromBal, err := v.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientStake, fromBal, amount)
	}
	toBal, err := v.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := v.storeAmount(receiptKey(v.rec.Address, from), new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := v.storeAmount(receiptKey(v.rec.Address, to), new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	if v.hook == nil {
		return nil
	}
	return v.hook.OnReceiptTransfer(v.rec.Address, v.rec.PoolID, from, to, new(big.Int).Set(amount))
}

// ResetAuthorization restores the unlimited allowance granted to the ledger.
func (v *Vault) ResetAuthorization() error {
	return v.assets.Approve(v.rec.Asset, v.rec.Address, v.rec.Ledger, maxAllowance())
}

// Allowance reports how much base asset the ledger may still move out of the
// vault.
func (v *Vault) Allowance() (*big.Int, error) {
	return v.assets.Allowance(v.rec.Asset, v.rec.Address, v.rec.Ledger)
}

// Holdings reports the vault's base asset balance.
func (v *Vault) Holdings() (*big.Int, error) {
	return v.assets.BalanceOf(v.rec.Asset, v.rec.Address)
}

// TotalSupply returns the outstanding receipt tokens.
func (v *Vault) TotalSupply() (*big.Int, error) {
	return v.loadAmount(supplyKey(v.rec.Address))
}

// BalanceOf returns holder's receipt token balance.
func (v *Vault) BalanceOf(holder [20]byte) (*big.Int, error) {
	return v.loadAmount(receiptKey(v.rec.Address, holder))
}

func (v *Vault) loadAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := v.st.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (v *Vault) storeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return v.st.KVDelete(key)
	}
	return v.st.KVPut(key, amount)
}

func maxAllowance() *big.Int {
	return new(uint256.Int).SetAllOne().ToBig()
}

var (
	recordPrefix  = []byte("vault/record/")
	receiptPrefix = []byte("vault/receipt/")
	supplyPrefix  = []byte("vault/supply/")
)

func recordKey(addr [20]byte) []byte {
	return append(append([]byte{}, recordPrefix...), addr[:]...)
}

func receiptKey(addr, holder [20]byte) []byte {
	key := append(append([]byte{}, receiptPrefix...), addr[:]...)
	return append(key, holder[:]...)
}

func supplyKey(addr [20]byte) []byte {
	return append(append([]byte{}, supplyPrefix...), addr[:]...)
}
