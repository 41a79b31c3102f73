package lending

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"poolledger/core/events"
	"poolledger/crypto"
)

// InitRegistry records the registry owner. It may only run once per state.
func (e *Engine) InitRegistry(owner crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if owner.IsZero() {
		return fmt.Errorf("%w: owner must be set", ErrConfiguration)
	}
	switch _, err := e.loadRegistry(); {
	case err == nil:
		return ErrAlreadyInitialised
	case !errors.Is(err, ErrNotInitialised):
		return err
	}
	return e.storeRegistry(&registryMeta{Owner: owner.Raw()})
}

// Owner returns the registry owner.
func (e *Engine) Owner() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	meta, err := e.loadRegistry()
	if err != nil {
		return [20]byte{}, err
	}
	return meta.Owner, nil
}

// requireOwner is the capability check run first by every admin operation.
func (e *Engine) requireOwner(caller crypto.Address) (*registryMeta, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	meta, err := e.loadRegistry()
	if err != nil {
		return nil, err
	}
	if caller.IsZero() || caller.Raw() != meta.Owner {
		return nil, fmt.Errorf("%w: caller is not the registry owner", ErrAuthorization)
	}
	return meta, nil
}

// TransferOwnership hands the registry to a new owner.
func (e *Engine) TransferOwnership(caller, newOwner crypto.Address) error {
	meta, err := e.requireOwner(caller)
	if err != nil {
		return err
	}
	if newOwner.IsZero() {
		return fmt.Errorf("%w: new owner must be set", ErrConfiguration)
	}
	previous := meta.Owner
	meta.Owner = newOwner.Raw()
	if err := e.storeRegistry(meta); err != nil {
		return err
	}
	e.emit(events.LendingOwnershipTransferred{Previous: previous, Owner: meta.Owner})
	return nil
}

// CreatePool validates cfg, creates the pool's vault and appends the pool.
// The new pool identifier is returned.
func (e *Engine) CreatePool(caller crypto.Address, cfg PoolConfig) (uint64, error) {
	meta, err := e.requireOwner(caller)
	if err != nil {
		return 0, err
	}
	if !cfg.Type.Valid() {
		return 0, fmt.Errorf("%w: unknown pool type %d", ErrConfiguration, cfg.Type)
	}
	asset, err := e.assets.Asset(cfg.Asset)
	if err != nil {
		return 0, fmt.Errorf("%w: asset: %v", ErrConfiguration, err)
	}
	pool := &Pool{
		ID:     meta.PoolCount,
		Type:   cfg.Type,
		Token:  TokenInfo{Asset: asset.Address, Decimals: asset.Decimals, Name: asset.Name, Symbol: asset.Symbol},
		Funds:  Funds{Balance: big.NewInt(0), LoanedBalance: big.NewInt(0)},
		Limits: Limits{},
	}
	now := e.now()
	if err := applyConfig(pool, cfg, now, true); err != nil {
		return 0, err
	}

	vaultAddr, err := e.vaults.CreateVault(e.address, asset.Address, asset.Decimals, pool.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: vault: %v", ErrConfiguration, err)
	}
	pool.Token.Vault = vaultAddr
	if err := e.bindVault(vaultAddr, pool.ID); err != nil {
		return 0, err
	}
	if err := e.storePool(pool); err != nil {
		return 0, err
	}
	meta.PoolCount++
	if err := e.storeRegistry(meta); err != nil {
		return 0, err
	}
	e.emit(events.LendingPoolCreated{Pool: pool.ID, Name: pool.Name, Kind: pool.Type.String(), Vault: vaultAddr})
	return pool.ID, nil
}

// EditPool replaces the mutable settings of an existing pool. Type, user
// count, funds, token and vault references and the interest latch are kept.
func (e *Engine) EditPool(caller crypto.Address, id uint64, cfg PoolConfig) error {
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	if cfg.Type != pool.Type {
		return fmt.Errorf("%w: pool type is immutable", ErrConfiguration)
	}
	if pool.Credit != nil {
		ceiling := utilisationCeiling(cfg.MaxUtilisation)
		if current := Utilisation(pool); ceiling.Cmp(current) < 0 {
			return fmt.Errorf("%w: max utilisation %d%% below current utilisation", ErrConfiguration, cfg.MaxUtilisation)
		}
	}
	if err := applyConfig(pool, cfg, e.now(), false); err != nil {
		return err
	}
	if err := e.storePool(pool); err != nil {
		return err
	}
	e.emit(events.LendingPoolEdited{Pool: pool.ID, Name: pool.Name})
	return nil
}

// applyConfig copies the mutable parts of cfg into pool, building the
// variant sections that pool.Type allows.
func applyConfig(pool *Pool, cfg PoolConfig, now uint64, creating bool) error {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return fmt.Errorf("%w: name required", ErrConfiguration)
	}
	if cfg.LimitPerUser != nil && cfg.LimitPerUser.Sign() < 0 {
		return fmt.Errorf("%w: limit per user must not be negative", ErrConfiguration)
	}
	if cfg.Capacity != nil && cfg.Capacity.Sign() < 0 {
		return fmt.Errorf("%w: capacity must not be negative", ErrConfiguration)
	}
	pool.Name = name
	pool.APY = cfg.APY
	pool.Paused = cfg.Paused
	pool.Limits = Limits{LimitPerUser: cloneBig(cfg.LimitPerUser), Capacity: cloneBig(cfg.Capacity)}

	if pool.Type.Lends() {
		if cfg.MaxUtilisation > 100 {
			return fmt.Errorf("%w: max utilisation %d exceeds 100", ErrConfiguration, cfg.MaxUtilisation)
		}
		pool.Credit = &Credit{MaxUtilisation: cfg.MaxUtilisation}
	} else {
		pool.Credit = nil
	}

	if !pool.Type.Scheduled() {
		if cfg.Duration != 0 || cfg.StartTime != 0 || cfg.EndTime != 0 || cfg.QuarterlyPayout {
			return fmt.Errorf("%w: %s pools have no deposit window", ErrConfiguration, pool.Type)
		}
		pool.Schedule = nil
		return nil
	}

	schedule := &Schedule{
		Duration:        cfg.Duration,
		StartTime:       cfg.StartTime,
		EndTime:         cfg.EndTime,
		QuarterlyPayout: cfg.QuarterlyPayout,
	}
	if creating && schedule.StartTime < now {
		schedule.StartTime = now
	}
	if pool.Schedule != nil && pool.Schedule.InterestStarted {
		schedule.InterestStarted = true
		schedule.EndTime = pool.Schedule.EndTime
		if schedule.StartTime > schedule.EndTime {
			schedule.StartTime = pool.Schedule.StartTime
		}
	} else if schedule.StartTime >= schedule.EndTime {
		return fmt.Errorf("%w: start time %d must precede end time %d", ErrConfiguration, schedule.StartTime, schedule.EndTime)
	}
	pool.Schedule = schedule
	return nil
}

// SetPaused toggles the pool-level pause flag.
func (e *Engine) SetPaused(caller crypto.Address, id uint64, paused bool) error {
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	pool.Paused = paused
	if err := e.storePool(pool); err != nil {
		return err
	}
	e.emit(events.LendingPoolPaused{Pool: id, Paused: paused})
	return nil
}

// StartInterest latches the interest start for a scheduled pool, freezing
// the deposit window end at now. A second call fails and leaves the pool
// untouched.
func (e *Engine) StartInterest(caller crypto.Address, id uint64) error {
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	if pool.Schedule == nil {
		return fmt.Errorf("%w: %s pools have no interest schedule", ErrPoolState, pool.Type)
	}
	if pool.Schedule.InterestStarted {
		return fmt.Errorf("%w: interest already started", ErrPoolState)
	}
	now := e.now()
	pool.Schedule.EndTime = now
	pool.Schedule.InterestStarted = true
	if err := e.storePool(pool); err != nil {
		return err
	}
	e.emit(events.LendingInterestStarted{Pool: id, StartedAt: now})
	return nil
}

// SetWhitelisted grants or revokes borrowing rights on a lending pool.
func (e *Engine) SetWhitelisted(caller crypto.Address, id uint64, participant crypto.Address, status bool) error {
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	if participant.IsZero() {
		return fmt.Errorf("%w: participant must be set", ErrConfiguration)
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	if pool.Credit == nil {
		return fmt.Errorf("%w: %s pools do not lend", ErrPoolState, pool.Type)
	}
	pos, err := e.loadPosition(id, participant.Raw())
	if err != nil {
		return err
	}
	pos.IsWhitelisted = status
	if err := e.storePosition(pos); err != nil {
		return err
	}
	e.emit(events.LendingWhitelisted{Pool: id, Account: pos.Participant, Status: status})
	return nil
}

// FundRewards moves amount from the owner into a scheduled pool's vault and
// credits it to the pool balance so staking rewards can be paid.
func (e *Engine) FundRewards(caller crypto.Address, id uint64, amount *big.Int) error {
	if _, err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	release, err := e.enter(id)
	if err != nil {
		return err
	}
	defer release()

	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	if pool.Schedule == nil {
		return fmt.Errorf("%w: %s pools pay no scheduled rewards", ErrPoolState, pool.Type)
	}
	res, err := e.reserveFor(pool)
	if err != nil {
		return err
	}
	pool.Funds.Balance = new(big.Int).Add(pool.Funds.Balance, amount)
	if err := e.storePool(pool); err != nil {
		return err
	}
	if err := res.collectPrincipal(caller.Raw(), amount); err != nil {
		return err
	}
	e.emit(events.LendingRewardsFunded{Pool: id, Account: caller.Raw(), Amount: new(big.Int).Set(amount)})
	return nil
}
