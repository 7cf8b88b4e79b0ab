// Package address derives per-account deposit addresses and validates
// destination addresses.
package address

// Deriver maps a (tenant, account) pair to a stable receive address.
type Deriver interface {
	Derive(tenantId, accountId int64) (string, error)
}

// KeyNode is one node of a hierarchical deterministic key tree. Only public
// derivation is needed to produce receive addresses.
type KeyNode interface {
	Child(index uint32) (KeyNode, error)
	Address() string
}

// Codec encodes key hashes into addresses and checks that a string is a
// well-formed address for the configured network.
type Codec interface {
	Encode(keyHash []byte) string
	Validate(addr string) error
}
