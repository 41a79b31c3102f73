package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"poolledger/crypto"
)

// ValidateGenesis checks addresses, amounts and that every mint and pool
// references an asset declared in the same file.
func ValidateGenesis(g *Genesis) error {
	if g.Owner == "" {
		return fmt.Errorf("Owner is required")
	}
	if err := validateAccount(g.Owner); err != nil {
		return fmt.Errorf("Owner: %w", err)
	}
	declared := make(map[[20]byte]struct{}, len(g.Assets))
	for i, asset := range g.Assets {
		raw, err := parseAsset(asset.Address)
		if err != nil {
			return fmt.Errorf("Assets[%d].Address: %w", i, err)
		}
		if _, dup := declared[raw]; dup {
			return fmt.Errorf("Assets[%d]: duplicate asset %s", i, asset.Address)
		}
		if asset.Symbol == "" {
			return fmt.Errorf("Assets[%d].Symbol is required", i)
		}
		declared[raw] = struct{}{}
	}
	for i, mint := range g.Mints {
		raw, err := parseAsset(mint.Asset)
		if err != nil {
			return fmt.Errorf("Mints[%d].Asset: %w", i, err)
		}
		if _, ok := declared[raw]; !ok {
			return fmt.Errorf("Mints[%d]: asset %s is not declared", i, mint.Asset)
		}
		if err := validateAccount(mint.To); err != nil {
			return fmt.Errorf("Mints[%d].To: %w", i, err)
		}
		amount, err := parseUintAmount(mint.Amount)
		if err != nil || amount.Sign() == 0 {
			return fmt.Errorf("Mints[%d].Amount must be a positive integer", i)
		}
	}
	for i := range g.Pools {
		pool := &g.Pools[i]
		if err := pool.Validate(); err != nil {
			return fmt.Errorf("Pools[%d]: %w", i, err)
		}
		raw, _ := parseAsset(pool.Asset)
		if _, ok := declared[raw]; !ok {
			return fmt.Errorf("Pools[%d]: asset %s is not declared", i, pool.Asset)
		}
	}
	return nil
}

// Validate performs the file-level checks. Rules that depend on ledger state,
// such as the deposit window lying in the future, are left to the engine.
func (p *Pool) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("Name is required")
	}
	if _, err := parseAsset(p.Asset); err != nil {
		return fmt.Errorf("Asset: %w", err)
	}
	if _, err := parseUintAmount(p.LimitPerUser); err != nil {
		return fmt.Errorf("LimitPerUser: %w", err)
	}
	if _, err := parseUintAmount(p.Capacity); err != nil {
		return fmt.Errorf("Capacity: %w", err)
	}
	switch p.Type {
	case "staking", "stake":
		if p.MaxUtilisation != 0 {
			return fmt.Errorf("MaxUtilisation does not apply to staking pools")
		}
		return p.validateSchedule()
	case "loan":
		if p.Duration != 0 || p.StartTime != 0 || p.EndTime != 0 || p.QuarterlyPayout {
			return fmt.Errorf("schedule fields do not apply to loan pools")
		}
		return validateUtilisation(p.MaxUtilisation)
	case "constrained-loan", "constrained_loan", "constrainedloan":
		if err := validateUtilisation(p.MaxUtilisation); err != nil {
			return err
		}
		return p.validateSchedule()
	default:
		return fmt.Errorf("unknown Type %q", p.Type)
	}
}

func (p *Pool) validateSchedule() error {
	if p.EndTime <= p.StartTime {
		return fmt.Errorf("EndTime must be after StartTime")
	}
	return nil
}

func validateUtilisation(ceiling uint64) error {
	if ceiling > 100 {
		return fmt.Errorf("MaxUtilisation %d exceeds 100", ceiling)
	}
	return nil
}

func validateAccount(raw string) error {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if addr.Prefix() != crypto.AccountPrefix {
		return fmt.Errorf("%s is not an account address", raw)
	}
	return nil
}

func parseAsset(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if common.IsHexAddress(trimmed) {
		return common.HexToAddress(trimmed), nil
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	if addr.Prefix() != crypto.AssetPrefix {
		return [20]byte{}, fmt.Errorf("%s is not an asset identifier", raw)
	}
	return addr.Raw(), nil
}

func parseUintAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
