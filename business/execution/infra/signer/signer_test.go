package signer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/secrets"
)

// Well-known test key (hardhat account #0).
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestKeySignerSignsForChain(t *testing.T) {
	s, err := NewKeySigner("0x" + testKey)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	if s.Address() != want {
		t.Fatalf("address = %s, want %s", s.Address(), want)
	}

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := types.NewTx(&types.LegacyTx{Nonce: 7, To: &to, Value: big.NewInt(0), Gas: 21000, GasPrice: big.NewInt(1e9)})
	chainID := big.NewInt(1)
	signed, err := s.Sign(context.Background(), tx, chainID)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	if from != want {
		t.Errorf("recovered sender = %s, want %s", from, want)
	}
	if signed.ChainId().Cmp(chainID) != 0 {
		t.Errorf("chain id = %s", signed.ChainId())
	}
}

func TestNewKeySignerRejectsGarbage(t *testing.T) {
	_, err := NewKeySigner("not-a-key")
	if !apperror.HasCode(err, apperror.CodeSignerUnavailable) {
		t.Errorf("error = %v, want SIGNER_UNAVAILABLE", err)
	}
}

func TestLoadKeySignerFromSecretStore(t *testing.T) {
	t.Setenv("ARBTEST_SIGNER_KEY", testKey)
	s, err := LoadKeySigner(context.Background(), secrets.EnvStore{Prefix: "ARBTEST_"}, "signer-key")
	if err != nil {
		t.Fatalf("LoadKeySigner: %v", err)
	}
	key, _ := crypto.HexToECDSA(testKey)
	if s.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Errorf("address mismatch")
	}

	_, err = LoadKeySigner(context.Background(), secrets.EnvStore{Prefix: "ARBTEST_"}, "missing")
	if !apperror.HasCode(err, apperror.CodeNotFound) {
		t.Errorf("missing secret error = %v", err)
	}
}

func TestOpenHardwareSignerUnknownDevice(t *testing.T) {
	_, err := OpenHardwareSigner("keepkey", "")
	if !apperror.HasCode(err, apperror.CodeConfigurationError) {
		t.Errorf("error = %v, want CONFIGURATION_ERROR", err)
	}
}
