package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

type RequestType string

const (
	RequestTypeTransfer RequestType = "transfer"
	RequestTypeWithdraw RequestType = "withdraw"
)

// Key scopes a client-supplied id to its tenant. Two tenants may use the same id.
type Key struct {
	TenantId int64
	Id       int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d-%d", k.TenantId, k.Id)
}

// Request is one client call. A key replayed with a different Fingerprint is
// refused rather than answered from the record.
type Request struct {
	Key         Key
	Type        RequestType
	Fingerprint string
}

// Fingerprint digests the parameters that make two requests the same request.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type RecordRepository interface {
	Get(ctx context.Context, key Key) (*Record, error)
	Insert(ctx context.Context, record *Record) error
}

type Idempotency interface {
	// Lookup returns the stored result for req, or found=false when the key is unused.
	Lookup(ctx context.Context, repo RecordRepository, req Request, newResult func() any) (result any, found bool, err error)
	Execute(ctx context.Context, repo RecordRepository, req Request, referenceId int64, newResult func() any, fn func() (any, error)) (any, error)
}
