package corks

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/usbwallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/smartcontractkit/corks/types"
)

// Sign endorses the proposal with the signer and appends the signature.
func Sign(p *CorkProposal, signer Signer) error {
	if err := p.Validate(); err != nil {
		return err
	}

	sigB, err := signer.Sign(p.ID())
	if err != nil {
		return err
	}

	sig, err := types.NewSignatureFromBytes(sigB)
	if err != nil {
		return err
	}

	return p.AppendSignature(sig)
}

// Signer is an interface for different strategies for endorsing cork identities.
type Signer interface {
	Sign(id types.CorkID) ([]byte, error)
	GetAddress() (common.Address, error)
}

var _ Signer = &PrivateKeySigner{}

// PrivateKeySigner signs with a private key.
type PrivateKeySigner struct {
	pk *ecdsa.PrivateKey
}

// NewPrivateKeySigner creates a new PrivateKeySigner.
func NewPrivateKeySigner(pk *ecdsa.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{pk: pk}
}

// Sign signs the EIP-712 digest of the cork identity.
func (s *PrivateKeySigner) Sign(id types.CorkID) ([]byte, error) {
	return crypto.Sign(id.SigningHash().Bytes(), s.pk)
}

// GetAddress returns the address of the signer.
func (s *PrivateKeySigner) GetAddress() (common.Address, error) {
	return crypto.PubkeyToAddress(s.pk.PublicKey), nil
}

var _ Signer = &LedgerSigner{}

// LedgerSigner signs with the first wallet found on a Ledger.
type LedgerSigner struct {
	derivationPath []uint32
}

// NewLedgerSigner creates a new LedgerSigner.
func NewLedgerSigner(derivationPath []uint32) *LedgerSigner {
	return &LedgerSigner{derivationPath: derivationPath}
}

// Sign sends the EIP-712 typed data of the cork identity to the device. The device hashes it
// and shows the domain and struct hashes for confirmation.
func (s *LedgerSigner) Sign(id types.CorkID) ([]byte, error) {
	wallet, account, err := s.setupLedgerAccount()
	if err != nil {
		return nil, err
	}
	defer wallet.Close()

	sig, err := wallet.SignData(account, accounts.MimetypeTypedData, id.TypedData())
	if err != nil {
		return nil, fmt.Errorf("failed to sign cork %s: %w", id, err)
	}

	if len(sig) == types.SignatureBytesLength && sig[types.SignatureBytesLength-1] >= types.SignatureVOffset {
		sig[types.SignatureBytesLength-1] -= types.SignatureVOffset
	}

	return sig, nil
}

// GetAddress returns the address of the derived account.
func (s *LedgerSigner) GetAddress() (common.Address, error) {
	wallet, account, err := s.setupLedgerAccount()
	if err != nil {
		return common.Address{}, err
	}
	defer wallet.Close()

	return account.Address, nil
}

// setupLedgerAccount loads the wallet and account from the ledger. Caller is responsible for closing the wallet.
func (s *LedgerSigner) setupLedgerAccount() (accounts.Wallet, accounts.Account, error) {
	ledgerhub, err := usbwallet.NewLedgerHub()
	if err != nil {
		return nil, accounts.Account{}, fmt.Errorf("failed to open ledger hub: %w", err)
	}

	wallets := ledgerhub.Wallets()
	if len(wallets) == 0 {
		return nil, accounts.Account{}, errors.New("no wallets found")
	}
	wallet := wallets[0]

	if err = wallet.Open(""); err != nil {
		return nil, accounts.Account{}, fmt.Errorf("failed to open wallet: %w", err)
	}

	account, err := wallet.Derive(s.derivationPath, true)
	if err != nil {
		wallet.Close() // Only close on error since caller won't be able to
		return nil, accounts.Account{}, fmt.Errorf("is your ledger ethereum app open? Failed to derive account: %w derivation path %v", err, s.derivationPath)
	}

	return wallet, account, nil
}
