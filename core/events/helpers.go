package events

import (
	"math/big"
	"strconv"

	"poolledger/crypto"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatPool(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func formatAccount(raw [20]byte) string {
	return crypto.AddressFromRaw(crypto.AccountPrefix, raw).String()
}

func formatVault(raw [20]byte) string {
	return crypto.AddressFromRaw(crypto.VaultPrefix, raw).String()
}

func zeroAddress(raw [20]byte) bool {
	for _, b := range raw {
		if b != 0 {
			return false
		}
	}
	return true
}
