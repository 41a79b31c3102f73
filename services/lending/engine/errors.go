package engine

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"poolledger/crypto"
)

var (
	ErrInvalidAddress = errors.New("lending: invalid address")
	ErrInvalidAmount  = errors.New("lending: invalid amount")
	ErrClosed         = errors.New("lending: runtime closed")
)

// ParseAddress decodes a bech32 address.
func ParseAddress(raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%w: address required", ErrInvalidAddress)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return addr, nil
}

// ParseAmount parses a base-10 integer amount. Negative values are rejected.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: amount required", ErrInvalidAmount)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, trimmed)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	}
	return value, nil
}

// ParseAsset accepts an asset identifier as bech32 ("asset1...") or as a
// 0x-prefixed hex address.
func ParseAsset(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if common.IsHexAddress(trimmed) {
		return common.HexToAddress(trimmed), nil
	}
	addr, err := ParseAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	if addr.Prefix() != crypto.AssetPrefix {
		return [20]byte{}, fmt.Errorf("%w: %s is not an asset identifier", ErrInvalidAddress, trimmed)
	}
	return addr.Raw(), nil
}

// FormatAsset renders an asset identifier in bech32.
func FormatAsset(asset [20]byte) string {
	return crypto.AddressFromRaw(crypto.AssetPrefix, asset).String()
}
