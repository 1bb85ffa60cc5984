// Package signer provides the transaction signing identities: a local
// private key and USB hardware wallets.
package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/secrets"
)

// KeySigner signs with an in-memory secp256k1 key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewKeySigner parses a hex private key, with or without 0x.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeSignerUnavailable,
			apperror.WithContext("invalid private key"), apperror.WithRetryable(false))
	}
	return FromKey(key), nil
}

func FromKey(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

// LoadKeySigner reads the hex key from a secret store.
func LoadKeySigner(ctx context.Context, store secrets.Store, name string) (*KeySigner, error) {
	hexKey, err := store.Get(ctx, name)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeSignerUnavailable, "secret "+name)
	}
	return NewKeySigner(hexKey)
}

func (s *KeySigner) Sign(_ context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, apperror.New(apperror.CodeSigningFailed, apperror.WithCause(err), apperror.WithRetryable(false))
	}
	return signed, nil
}

func (s *KeySigner) Address() common.Address { return s.addr }

func (s *KeySigner) IsAvailable(context.Context) bool { return s.key != nil }
