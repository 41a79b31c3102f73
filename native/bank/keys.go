package bank

var (
	assetPrefix     = []byte("bank/asset/")
	balancePrefix   = []byte("bank/balance/")
	allowancePrefix = []byte("bank/allowance/")
	supplyPrefix    = []byte("bank/supply/")
)

func joinKey(prefix []byte, parts ...[20]byte) []byte {
	key := make([]byte, 0, len(prefix)+20*len(parts))
	key = append(key, prefix...)
	for _, part := range parts {
		key = append(key, part[:]...)
	}
	return key
}

func assetKey(asset [20]byte) []byte { return joinKey(assetPrefix, asset) }

func balanceKey(asset, holder [20]byte) []byte { return joinKey(balancePrefix, asset, holder) }

func allowanceKey(asset, owner, spender [20]byte) []byte {
	return joinKey(allowancePrefix, asset, owner, spender)
}

func supplyKey(asset [20]byte) []byte { return joinKey(supplyPrefix, asset) }
