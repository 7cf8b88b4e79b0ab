package idempotency

import "time"

// Record is the stored outcome of one client request. ReferenceId points at
// the transfer or withdrawal row the request produced.
type Record struct {
	TenantId     int64
	Id           int64
	RequestType  RequestType
	Fingerprint  string
	ReferenceId  int64
	ResponseData string
	CreatedAt    time.Time
}

func (r *Record) Key() Key {
	return Key{TenantId: r.TenantId, Id: r.Id}
}
