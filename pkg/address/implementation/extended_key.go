package implementation

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/jt828/token-ledger/pkg/address"
)

const (
	hardenedOffset = uint32(hdkeychain.HardenedKeyStart)
	chainCodeSize  = 32
)

// xpubVersion tags keys built from a raw public key and chain code.
var xpubVersion = []byte{0x04, 0x88, 0xb2, 0x1e}

var ErrHardenedPublicDerivation = hdkeychain.ErrDeriveHardFromPublic

type extendedPublicKey struct {
	key     *hdkeychain.ExtendedKey
	keyHash []byte
	codec   address.Codec
}

func newExtendedPublicKey(key *hdkeychain.ExtendedKey, codec address.Codec) (*extendedPublicKey, error) {
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, err
	}
	return &extendedPublicKey{
		key:     key,
		keyHash: btcutil.Hash160(pub.SerializeCompressed()),
		codec:   codec,
	}, nil
}

func NewExtendedPublicKey(pubKey, chainCode []byte, codec address.Codec) (address.KeyNode, error) {
	if len(chainCode) != chainCodeSize {
		return nil, fmt.Errorf("chain code must be %d bytes, got %d", chainCodeSize, len(chainCode))
	}
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("parse master public key: %w", err)
	}
	key := hdkeychain.NewExtendedKey(xpubVersion, pub.SerializeCompressed(), bytes.Clone(chainCode), []byte{0, 0, 0, 0}, 0, 0, false)
	return newExtendedPublicKey(key, codec)
}

// ParseExtendedPublicKey reads a serialized extended key (the "xpub" form).
// A private key is neutered first.
func ParseExtendedPublicKey(serialized string, codec address.Codec) (address.KeyNode, error) {
	key, err := hdkeychain.NewKeyFromString(serialized)
	if err != nil {
		return nil, fmt.Errorf("parse extended key: %w", err)
	}
	key, err = key.Neuter()
	if err != nil {
		return nil, fmt.Errorf("neuter extended key: %w", err)
	}
	return newExtendedPublicKey(key, codec)
}

func (k *extendedPublicKey) Child(index uint32) (address.KeyNode, error) {
	child, err := k.key.Derive(index)
	if err != nil {
		return nil, err
	}
	return newExtendedPublicKey(child, k.codec)
}

func (k *extendedPublicKey) Address() string {
	return k.codec.Encode(k.keyHash)
}
