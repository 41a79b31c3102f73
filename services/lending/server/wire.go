package server

import (
	"fmt"
	"math/big"
	"strings"

	"poolledger/config"
	"poolledger/crypto"
	"poolledger/native/bank"
	"poolledger/native/lending"
	"poolledger/services/lending/engine"
	"poolledger/services/lending/journal"
)

// Amounts travel as base-10 strings so 256-bit values survive JSON.

type PoolConfigRequest struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	APY             uint64 `json:"apy"`
	Asset           string `json:"asset"`
	Paused          bool   `json:"paused,omitempty"`
	LimitPerUser    string `json:"limit_per_user,omitempty"`
	Capacity        string `json:"capacity,omitempty"`
	MaxUtilisation  uint64 `json:"max_utilisation,omitempty"`
	Duration        uint64 `json:"duration,omitempty"`
	StartTime       uint64 `json:"start_time,omitempty"`
	EndTime         uint64 `json:"end_time,omitempty"`
	QuarterlyPayout bool   `json:"quarterly_payout,omitempty"`
}

// Config converts the request into the engine's pool definition.
func (r PoolConfigRequest) Config() (lending.PoolConfig, error) {
	poolType, err := lending.ParsePoolType(r.Type)
	if err != nil {
		return lending.PoolConfig{}, err
	}
	asset, err := engine.ParseAsset(r.Asset)
	if err != nil {
		return lending.PoolConfig{}, err
	}
	limit, err := optionalAmount(r.LimitPerUser)
	if err != nil {
		return lending.PoolConfig{}, fmt.Errorf("limit_per_user: %w", err)
	}
	capacity, err := optionalAmount(r.Capacity)
	if err != nil {
		return lending.PoolConfig{}, fmt.Errorf("capacity: %w", err)
	}
	return lending.PoolConfig{
		Name:            strings.TrimSpace(r.Name),
		Type:            poolType,
		APY:             r.APY,
		Asset:           asset,
		Paused:          r.Paused,
		LimitPerUser:    limit,
		Capacity:        capacity,
		MaxUtilisation:  r.MaxUtilisation,
		Duration:        r.Duration,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		QuarterlyPayout: r.QuarterlyPayout,
	}, nil
}

// PoolRequestFromConfig converts a pool file definition into its wire form.
func PoolRequestFromConfig(p config.Pool) PoolConfigRequest {
	return PoolConfigRequest{
		Name:            p.Name,
		Type:            p.Type,
		APY:             p.APY,
		Asset:           p.Asset,
		Paused:          p.Paused,
		LimitPerUser:    p.LimitPerUser,
		Capacity:        p.Capacity,
		MaxUtilisation:  p.MaxUtilisation,
		Duration:        p.Duration,
		StartTime:       p.StartTime,
		EndTime:         p.EndTime,
		QuarterlyPayout: p.QuarterlyPayout,
	}
}

func optionalAmount(raw string) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return big.NewInt(0), nil
	}
	return engine.ParseAmount(raw)
}

type ScheduleView struct {
	Duration        uint64 `json:"duration"`
	StartTime       uint64 `json:"start_time"`
	EndTime         uint64 `json:"end_time"`
	QuarterlyPayout bool   `json:"quarterly_payout"`
	InterestStarted bool   `json:"interest_started"`
}

type PoolView struct {
	ID             uint64        `json:"id"`
	Name           string        `json:"name"`
	Type           string        `json:"type"`
	APY            uint64        `json:"apy"`
	Paused         bool          `json:"paused"`
	UniqueUsers    uint64        `json:"unique_users"`
	Asset          string        `json:"asset"`
	Vault          string        `json:"vault"`
	Symbol         string        `json:"symbol"`
	Decimals       uint8         `json:"decimals"`
	Balance        string        `json:"balance"`
	LoanedBalance  string        `json:"loaned_balance"`
	LimitPerUser   string        `json:"limit_per_user"`
	Capacity       string        `json:"capacity"`
	MaxUtilisation *uint64       `json:"max_utilisation,omitempty"`
	Schedule       *ScheduleView `json:"schedule,omitempty"`
}

func newPoolView(p *lending.Pool) PoolView {
	view := PoolView{
		ID:            p.ID,
		Name:          p.Name,
		Type:          p.Type.String(),
		APY:           p.APY,
		Paused:        p.Paused,
		UniqueUsers:   p.UniqueUsers,
		Asset:         engine.FormatAsset(p.Token.Asset),
		Vault:         crypto.AddressFromRaw(crypto.VaultPrefix, p.Token.Vault).String(),
		Symbol:        p.Token.Symbol,
		Decimals:      p.Token.Decimals,
		Balance:       amountString(p.Funds.Balance),
		LoanedBalance: amountString(p.Funds.LoanedBalance),
		LimitPerUser:  amountString(p.Limits.LimitPerUser),
		Capacity:      amountString(p.Limits.Capacity),
	}
	if p.Credit != nil {
		ceiling := p.Credit.MaxUtilisation
		view.MaxUtilisation = &ceiling
	}
	if p.Schedule != nil {
		view.Schedule = &ScheduleView{
			Duration:        p.Schedule.Duration,
			StartTime:       p.Schedule.StartTime,
			EndTime:         p.Schedule.EndTime,
			QuarterlyPayout: p.Schedule.QuarterlyPayout,
			InterestStarted: p.Schedule.InterestStarted,
		}
	}
	return view
}

type PositionView struct {
	Pool               uint64 `json:"pool"`
	Participant        string `json:"participant"`
	IsPoolUser         bool   `json:"is_pool_user"`
	IsWhitelisted      bool   `json:"is_whitelisted"`
	Type               string `json:"type"`
	Amount             string `json:"amount"`
	Time               uint64 `json:"time"`
	PendingInterest    string `json:"pending_interest"`
	PaidOutForDuration uint64 `json:"paid_out_for_duration"`
	PaidOutForQuarters uint64 `json:"paid_out_for_quarters"`
	Receipts           string `json:"receipts"`
	Outstanding        string `json:"outstanding"`
}

func newPositionView(pos engine.Position) PositionView {
	p := pos.Position
	return PositionView{
		Pool:               p.Pool,
		Participant:        crypto.AddressFromRaw(crypto.AccountPrefix, p.Participant).String(),
		IsPoolUser:         p.IsPoolUser,
		IsWhitelisted:      p.IsWhitelisted,
		Type:               p.Transaction.Type.String(),
		Amount:             amountString(p.Transaction.Amount),
		Time:               p.Transaction.Time,
		PendingInterest:    amountString(p.Transaction.PendingInterest),
		PaidOutForDuration: p.Transaction.PaidOutForDuration,
		PaidOutForQuarters: p.Transaction.PaidOutForQuarters,
		Receipts:           amountString(pos.Receipts),
		Outstanding:        amountString(pos.Outstanding),
	}
}

type InterestView struct {
	Pool        uint64 `json:"pool"`
	Participant string `json:"participant"`
	Outstanding string `json:"outstanding"`
}

// UtilisationView reports utilisation scaled by PercentPrecision.
type UtilisationView struct {
	Pool      uint64 `json:"pool"`
	Current   string `json:"current"`
	Projected string `json:"projected"`
	Max       uint64 `json:"max_utilisation"`
	Precision uint64 `json:"precision"`
}

type BalanceView struct {
	Asset     string `json:"asset"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	Holder    string `json:"holder"`
	Amount    string `json:"amount"`
	Allowance string `json:"allowance"`
}

type AssetRequest struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Asset converts the request into a bank asset definition.
func (r AssetRequest) Asset() (bank.Asset, error) {
	addr, err := engine.ParseAsset(r.Address)
	if err != nil {
		return bank.Asset{}, err
	}
	return bank.Asset{Address: addr, Name: strings.TrimSpace(r.Name), Symbol: strings.TrimSpace(r.Symbol), Decimals: r.Decimals}, nil
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type TransferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type MintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type PauseRequest struct {
	Paused bool `json:"paused"`
}

type WhitelistRequest struct {
	Account string `json:"account"`
	Status  bool   `json:"status"`
}

type OwnershipRequest struct {
	Owner string `json:"owner"`
}

// OperationResponse acknowledges a participant operation. Result carries the
// payout, interest or reward where the operation produces one.
type OperationResponse struct {
	Pool   uint64 `json:"pool"`
	Amount string `json:"amount,omitempty"`
	Result string `json:"result,omitempty"`
}

type CreatedResponse struct {
	ID uint64 `json:"id"`
}

type OwnerResponse struct {
	Owner        string `json:"owner"`
	Ledger       string `json:"ledger,omitempty"`
	ModulePaused bool   `json:"module_paused"`
}

type PoolsResponse struct {
	Pools []PoolView `json:"pools"`
}

type EventsResponse struct {
	Events []journal.Record `json:"events"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
