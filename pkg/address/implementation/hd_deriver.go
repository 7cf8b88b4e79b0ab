package implementation

import (
	"fmt"
	"sync"

	"github.com/jt828/token-ledger/pkg/address"
	"github.com/jt828/token-ledger/pkg/apperror"
)

type hdDeriver struct {
	master address.KeyNode

	mu      sync.RWMutex
	tenants map[uint32]address.KeyNode
}

// NewHDDeriver derives master/tenant/account. Tenant nodes are cached since
// every account of a tenant shares them.
func NewHDDeriver(master address.KeyNode) address.Deriver {
	return &hdDeriver{
		master:  master,
		tenants: make(map[uint32]address.KeyNode),
	}
}

func (d *hdDeriver) Derive(tenantId, accountId int64) (string, error) {
	tenantIndex, err := childIndex("tenant", tenantId)
	if err != nil {
		return "", err
	}
	accountIndex, err := childIndex("account", accountId)
	if err != nil {
		return "", err
	}

	tenant, err := d.tenant(tenantIndex)
	if err != nil {
		return "", err
	}
	account, err := tenant.Child(accountIndex)
	if err != nil {
		return "", fmt.Errorf("derive account %d: %w", accountId, err)
	}
	return account.Address(), nil
}

func (d *hdDeriver) tenant(index uint32) (address.KeyNode, error) {
	d.mu.RLock()
	node, ok := d.tenants[index]
	d.mu.RUnlock()
	if ok {
		return node, nil
	}

	node, err := d.master.Child(index)
	if err != nil {
		return nil, fmt.Errorf("derive tenant %d: %w", index, err)
	}

	d.mu.Lock()
	d.tenants[index] = node
	d.mu.Unlock()
	return node, nil
}

func childIndex(kind string, id int64) (uint32, error) {
	if id <= 0 || id >= int64(hardenedOffset) {
		return 0, fmt.Errorf("%s id %d: %w", kind, id, apperror.ErrInvalidIdentifier)
	}
	return uint32(id), nil
}
