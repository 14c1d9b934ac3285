package auth

import (
	"context"
	"sync"
	"time"
)

const denylistSweepInterval = time.Minute

// MemoryDenylist keeps revoked token ids in process memory. Expired entries
// are dropped on lookup and by a sweep that Revoke runs at most once per
// minute. Revocations are not shared across processes.
type MemoryDenylist struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryDenylist returns an empty in-process denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if now.Sub(d.lastSweep) >= denylistSweepInterval {
		d.sweepLocked(now)
	}
	d.entries[tokenID] = until
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !until.After(d.now()) {
		delete(d.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// Sweep drops every expired entry and reports how many remain.
func (d *MemoryDenylist) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepLocked(d.now())
	return len(d.entries)
}

func (d *MemoryDenylist) sweepLocked(now time.Time) {
	for id, until := range d.entries {
		if !until.After(now) {
			delete(d.entries, id)
		}
	}
	d.lastSweep = now
}
