package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	ErrUnknownAsset          = errors.New("bank: unknown asset")
	ErrAssetExists           = errors.New("bank: asset already registered")
	ErrInvalidAsset          = errors.New("bank: invalid asset metadata")
	ErrInvalidAmount         = errors.New("bank: amount must be positive")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
	ErrOverflow              = errors.New("bank: amount exceeds 256 bits")
)

// MaxAllowance is the "unlimited" approval value, 2^256-1.
func MaxAllowance() *big.Int {
	return new(uint256.Int).SetAllOne().ToBig()
}

type kvState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Asset is the metadata cached for a fungible base asset.
type Asset struct {
	Address  [20]byte
	Name     string
	Symbol   string
	Decimals uint8
}

// Ledger tracks balances and allowances for every registered asset. All
// amounts are bounded to 256 bits.
type Ledger struct {
	st kvState
}

// NewLedger binds the ledger to the provided state.
func NewLedger(st kvState) *Ledger {
	return &Ledger{st: st}
}

// RegisterAsset records metadata for a new asset.
func (l *Ledger) RegisterAsset(asset Asset) error {
	asset.Name = strings.TrimSpace(asset.Name)
	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	if asset.Symbol == "" || isZero(asset.Address) {
		return ErrInvalidAsset
	}
	if asset.Decimals > 36 {
		return fmt.Errorf("%w: decimals %d", ErrInvalidAsset, asset.Decimals)
	}
	exists, err := l.st.KVGet(assetKey(asset.Address), new(Asset))
	if err != nil {
		return err
	}
	if exists {
		return ErrAssetExists
	}
	return l.st.KVPut(assetKey(asset.Address), &asset)
}

// Asset loads the metadata for addr.
func (l *Ledger) Asset(addr [20]byte) (*Asset, error) {
	asset := new(Asset)
	ok, err := l.st.KVGet(assetKey(addr), asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownAsset
	}
	return asset, nil
}

// BalanceOf returns the holder's balance of asset.
func (l *Ledger) BalanceOf(asset, holder [20]byte) (*big.Int, error) {
	return l.loadAmount(balanceKey(asset, holder))
}

// TotalSupply returns the minted supply of asset.
func (l *Ledger) TotalSupply(asset [20]byte) (*big.Int, error) {
	return l.loadAmount(supplyKey(asset))
}

// Allowance returns how much spender may move on behalf of owner.
func (l *Ledger) Allowance(asset, owner, spender [20]byte) (*big.Int, error) {
	return l.loadAmount(allowanceKey(asset, owner, spender))
}

// Approve sets the spender allowance, replacing any previous value.
func (l *Ledger) Approve(asset, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrOverflow
	}
	if _, err := l.Asset(asset); err != nil {
		return err
	}
	return l.storeAmount(allowanceKey(asset, owner, spender), amount)
}

// Mint credits freshly issued units to holder.
func (l *Ledger) Mint(asset, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, err := l.Asset(asset); err != nil {
		return err
	}
	supply, err := l.TotalSupply(asset)
	if err != nil {
		return err
	}
	supply = new(big.Int).Add(supply, amount)
	if _, overflow := uint256.FromBig(supply); overflow {
		return ErrOverflow
	}
	if err := l.credit(asset, to, amount); err != nil {
		return err
	}
	return l.storeAmount(supplyKey(asset), supply)
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(asset, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, err := l.Asset(asset); err != nil {
		return err
	}
	if err := l.debit(asset, from, amount); err != nil {
		return err
	}
	return l.credit(asset, to, amount)
}

// TransferFrom moves amount out of from's balance using spender's allowance.
func (l *Ledger) TransferFrom(asset, spender, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowance, err := l.Allowance(asset, from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amount)
	}
	if err := l.Transfer(asset, from, to, amount); err != nil {
		return err
	}
	return l.storeAmount(allowanceKey(asset, from, spender), new(big.Int).Sub(allowance, amount))
}

func (l *Ledger) debit(asset, holder [20]byte, amount *big.Int) error {
	balance, err := l.BalanceOf(asset, holder)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, amount)
	}
	return l.storeAmount(balanceKey(asset, holder), new(big.Int).Sub(balance, amount))
}

func (l *Ledger) credit(asset, holder [20]byte, amount *big.Int) error {
	balance, err := l.BalanceOf(asset, holder)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(balance, amount)
	if _, overflow := uint256.FromBig(next); overflow {
		return ErrOverflow
	}
	return l.storeAmount(balanceKey(asset, holder), next)
}

func (l *Ledger) loadAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := l.st.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (l *Ledger) storeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return l.st.KVDelete(key)
	}
	return l.st.KVPut(key, amount)
}

func isZero(addr [20]byte) bool {
	return addr == [20]byte{}
}
