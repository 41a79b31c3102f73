package config

// Asset registers a fungible base asset at genesis.
type Asset struct {
	Address  string `toml:"Address"`
	Name     string `toml:"Name"`
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// Mint credits an account with a registered asset at genesis. Devnets use it
// to seed participants.
type Mint struct {
	Asset  string `toml:"Asset"`
	To     string `toml:"To"`
	Amount string `toml:"Amount"`
}

// Pool is the file form of a pool definition. Amounts are base-10 strings;
// an empty LimitPerUser or Capacity means unlimited. Schedule fields apply to
// staking and constrained-loan pools, MaxUtilisation to loan and
// constrained-loan pools.
type Pool struct {
	Name            string `toml:"Name"`
	Type            string `toml:"Type"`
	APY             uint64 `toml:"APY"`
	Asset           string `toml:"Asset"`
	Paused          bool   `toml:"Paused"`
	LimitPerUser    string `toml:"LimitPerUser"`
	Capacity        string `toml:"Capacity"`
	MaxUtilisation  uint64 `toml:"MaxUtilisation"`
	Duration        uint64 `toml:"Duration"`
	StartTime       uint64 `toml:"StartTime"`
	EndTime         uint64 `toml:"EndTime"`
	QuarterlyPayout bool   `toml:"QuarterlyPayout"`
}

// Genesis seeds an empty ledger: the registry owner, assets, balances and
// the initial pool set. It is applied once, when the registry has no owner.
type Genesis struct {
	Owner        string  `toml:"Owner"`
	ModulePaused bool    `toml:"ModulePaused"`
	Assets       []Asset `toml:"Assets"`
	Mints        []Mint  `toml:"Mints"`
	Pools        []Pool  `toml:"Pools"`
}
