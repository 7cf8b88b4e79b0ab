package implementation

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/jt828/token-ledger/pkg/address"
	"github.com/jt828/token-ledger/pkg/apperror"
)

const keyHashLength = 20

type base58Check struct {
	version byte
}

// NewBase58Check returns a codec for version-prefixed, double-SHA256
// checksummed pay-to-key-hash addresses.
func NewBase58Check(version byte) address.Codec {
	return &base58Check{version: version}
}

func (c *base58Check) Encode(keyHash []byte) string {
	return base58.CheckEncode(keyHash, c.version)
}

func (c *base58Check) Validate(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address: %w", apperror.ErrInvalidAddress)
	}
	payload, version, err := base58.CheckDecode(addr)
	if errors.Is(err, base58.ErrChecksum) {
		return fmt.Errorf("%q checksum mismatch: %w", addr, apperror.ErrInvalidAddress)
	}
	if err != nil {
		return fmt.Errorf("%q is not base58check: %w", addr, apperror.ErrInvalidAddress)
	}
	if len(payload) != keyHashLength {
		return fmt.Errorf("%q has key hash length %d: %w", addr, len(payload), apperror.ErrInvalidAddress)
	}
	if version != c.version {
		return fmt.Errorf("%q has version %#x: %w", addr, version, apperror.ErrInvalidAddress)
	}
	return nil
}
