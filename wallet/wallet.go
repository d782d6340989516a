// Package wallet provides local key signers for chain.EthProvider.
package wallet

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/pkg/errors"
)

// DefaultDerivationPath is the first account of the standard Ethereum path.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// KeySigner signs with an in-memory private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner wraps a private key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// FromPrivateKeyHex parses a hex private key, with or without 0x.
func FromPrivateKeyHex(privateKeyHex string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return NewKeySigner(key), nil
}

// FromMnemonic derives the key at derivationPath from a BIP-39 mnemonic. An
// empty path means DefaultDerivationPath.
func FromMnemonic(mnemonic, derivationPath string) (*KeySigner, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	derivationPath = strings.TrimSpace(derivationPath)
	if mnemonic == "" {
		return nil, errors.New("mnemonic is required")
	}
	if derivationPath == "" {
		derivationPath = DefaultDerivationPath
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mnemonic")
	}
	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, errors.Wrap(err, "invalid derivation path")
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "derive failed")
	}
	key, err := w.PrivateKey(acct)
	if err != nil {
		return nil, errors.Wrap(err, "private key failed")
	}
	return NewKeySigner(key), nil
}

func (s *KeySigner) Address() common.Address { return s.address }

func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.NewEIP155Signer(chainID), s.key)
}

// SignText signs the personal-message digest of message.
func (s *KeySigner) SignText(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign message")
	}
	sig[64] += 27
	return sig, nil
}
