package signer

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/usbwallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/arbguard/internal/apperror"
)

// DefaultDerivationPath is the first account of the standard Ethereum path.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// Device kinds.
const (
	DeviceLedger = "ledger"
	DeviceTrezor = "trezor"
)

// HardwareSigner signs on a Ledger or Trezor device. Every signature needs
// confirmation on the device.
type HardwareSigner struct {
	device  string
	wallet  accounts.Wallet
	account accounts.Account

	mu sync.Mutex
}

// OpenHardwareSigner opens the first connected device of kind and derives
// the account at path.
func OpenHardwareSigner(device, path string) (*HardwareSigner, error) {
	var (
		hub *usbwallet.Hub
		err error
	)
	switch device {
	case DeviceLedger:
		hub, err = usbwallet.NewLedgerHub()
	case DeviceTrezor:
		hub, err = usbwallet.NewTrezorHubWithHID()
	default:
		return nil, apperror.Validation(apperror.CodeConfigurationError, "unknown hardware device "+device)
	}
	if err != nil {
		return nil, unavailable(device, err)
	}

	wallets := hub.Wallets()
	if len(wallets) == 0 {
		return nil, apperror.New(apperror.CodeSignerUnavailable,
			apperror.WithContext(device+": no device connected"), apperror.WithRetryable(false))
	}
	wallet := wallets[0]
	if err := wallet.Open(""); err != nil {
		return nil, unavailable(device, err)
	}

	if path == "" {
		path = DefaultDerivationPath
	}
	dp, err := accounts.ParseDerivationPath(path)
	if err != nil {
		wallet.Close()
		return nil, apperror.Validation(apperror.CodeConfigurationError, "derivation path "+path)
	}
	account, err := wallet.Derive(dp, true)
	if err != nil {
		wallet.Close()
		return nil, unavailable(device, err)
	}
	return &HardwareSigner{device: device, wallet: wallet, account: account}, nil
}

func (s *HardwareSigner) Sign(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	// Devices handle one request at a time.
	s.mu.Lock()
	defer s.mu.Unlock()

	signed, err := s.wallet.SignTx(s.account, tx, chainID)
	if err != nil {
		return nil, apperror.New(apperror.CodeSigningFailed,
			apperror.WithContext(s.device), apperror.WithCause(err), apperror.WithRetryable(false))
	}
	return signed, nil
}

func (s *HardwareSigner) Address() common.Address { return s.account.Address }

// IsAvailable reports whether the device is still connected and unlocked.
func (s *HardwareSigner) IsAvailable(context.Context) bool {
	_, err := s.wallet.Status()
	return err == nil
}

func (s *HardwareSigner) Close() error {
	return s.wallet.Close()
}

func unavailable(device string, err error) error {
	return apperror.New(apperror.CodeSignerUnavailable,
		apperror.WithContext(device), apperror.WithCause(err), apperror.WithRetryable(false))
}
