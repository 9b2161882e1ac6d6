package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits yields a 24 word phrase
const MnemonicEntropyBits = 256

var ErrInvalidMnemonic = errors.New("invalid mnemonic")

var errNotSerializable = errors.New("signer is not serializable")

// NewMnemonic returns a fresh 24 word english seed phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// Signer holds the private key of a single invoice address.
// It never exposes the key: it can't be marshalled and only prints its address.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// FromMnemonic derives the first account (m/44'/60'/0'/0/0) of the phrase.
// The same phrase always yields the same key and address.
func FromMnemonic(mnemonic string) (*Signer, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed := bip39.NewSeed(mnemonic, "")
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, index := range accounts.DefaultBaseDerivationPath {
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", accounts.DefaultBaseDerivationPath, err)
		}
	}
	btcecKey, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	privateKey, err := crypto.ToECDSA(btcecKey.Serialize())
	if err != nil {
		return nil, err
	}
	return &Signer{
		key:     privateKey,
		address: crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// SignTx signs tx for the given chain with the latest signer rules (EIP-1559 aware).
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

func (s *Signer) String() string {
	return s.address.Hex()
}

func (s *Signer) GoString() string {
	return fmt.Sprintf("wallet.Signer{%s}", s.address.Hex())
}

func (s *Signer) MarshalJSON() ([]byte, error) {
	return nil, errNotSerializable
}

func (s *Signer) MarshalText() ([]byte, error) {
	return nil, errNotSerializable
}
