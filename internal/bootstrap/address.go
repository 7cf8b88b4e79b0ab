package bootstrap

import (
	"encoding/hex"
	"fmt"

	"github.com/jt828/token-ledger/internal/config"
	"github.com/jt828/token-ledger/pkg/address"
	addressImpl "github.com/jt828/token-ledger/pkg/address/implementation"
)

func InitializeAddress(cfg config.AddressConfig) (address.Deriver, address.Codec, error) {
	codec := addressImpl.NewBase58Check(cfg.Version)

	var (
		master address.KeyNode
		err    error
	)
	if cfg.Xpub != "" {
		master, err = addressImpl.ParseExtendedPublicKey(cfg.Xpub, codec)
	} else {
		master, err = masterFromHex(cfg.MasterPublicKey, cfg.ChainCode, codec)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("master key: %w", err)
	}
	return addressImpl.NewHDDeriver(master), codec, nil
}

func masterFromHex(pubKey, chainCode string, codec address.Codec) (address.KeyNode, error) {
	pub, err := hex.DecodeString(pubKey)
	if err != nil {
		return nil, fmt.Errorf("master_public_key: %w", err)
	}
	cc, err := hex.DecodeString(chainCode)
	if err != nil {
		return nil, fmt.Errorf("chain_code: %w", err)
	}
	return addressImpl.NewExtendedPublicKey(pub, cc, codec)
}
