package lending

import (
	"fmt"
	"math/big"

	"poolledger/native/bank"
	"poolledger/native/vault"
)

// AssetLedger is the base asset primitive the engine moves funds through.
type AssetLedger interface {
	Asset(addr [20]byte) (*bank.Asset, error)
	BalanceOf(asset, holder [20]byte) (*big.Int, error)
	Allowance(asset, owner, spender [20]byte) (*big.Int, error)
	TransferFrom(asset, spender, from, to [20]byte, amount *big.Int) error
}

// Custodian is the per-pool vault surface the engine consumes.
type Custodian interface {
	Issue(caller, to [20]byte, amount *big.Int) error
	Redeem(caller, from [20]byte, amount *big.Int) error
	Transfer(from, to [20]byte, amount *big.Int) error
	ResetAuthorization() error
	Allowance() (*big.Int, error)
	TotalSupply() (*big.Int, error)
	BalanceOf(holder [20]byte) (*big.Int, error)
}

// VaultFactory creates and opens pool vaults.
type VaultFactory interface {
	CreateVault(ledger, asset [20]byte, decimals uint8, poolID uint64) ([20]byte, error)
	OpenVault(addr [20]byte) (Custodian, error)
}

type vaultFactory struct {
	*vault.Factory
}

// NewVaultFactory exposes a vault.Factory through the VaultFactory interface.
func NewVaultFactory(f *vault.Factory) VaultFactory {
	return vaultFactory{Factory: f}
}

func (f vaultFactory) OpenVault(addr [20]byte) (Custodian, error) {
	v, err := f.Factory.Open(addr)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// reserve mediates custody for one pool. It holds no ledger state.
type reserve struct {
	ledger [20]byte
	asset  [20]byte
	vault  [20]byte
	assets AssetLedger
	vaultC Custodian
}

func (e *Engine) reserveFor(pool *Pool) (*reserve, error) {
	custodian, err := e.vaults.OpenVault(pool.Token.Vault)
	if err != nil {
		return nil, fmt.Errorf("%w: pool %d vault: %v", ErrConsistency, pool.ID, err)
	}
	return &reserve{
		ledger: e.address,
		asset:  pool.Token.Asset,
		vault:  pool.Token.Vault,
		assets: e.assets,
		vaultC: custodian,
	}, nil
}

// collectPrincipal pulls amount from a participant into the vault using the
// allowance the participant granted the ledger.
func (r *reserve) collectPrincipal(from [20]byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return r.assets.TransferFrom(r.asset, r.ledger, from, r.vault, amount)
}

// pay moves amount out of the vault, restoring the vault's allowance toward
// the ledger first when it no longer covers the payment.
func (r *reserve) pay(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	allowance, err := r.vaultC.Allowance()
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		if err := r.vaultC.ResetAuthorization(); err != nil {
			return fmt.Errorf("lending: reset vault authorization: %w", err)
		}
	}
	return r.assets.TransferFrom(r.asset, r.ledger, r.vault, to, amount)
}

func (r *reserve) issue(to [20]byte, amount *big.Int) error {
	return r.vaultC.Issue(r.ledger, to, amount)
}

func (r *reserve) redeem(from [20]byte, amount *big.Int) error {
	if err := r.vaultC.Redeem(r.ledger, from, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrConsistency, err)
	}
	return nil
}

func (r *reserve) receiptSupply() (*big.Int, error) {
	return r.vaultC.TotalSupply()
}
