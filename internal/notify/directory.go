package notify

import (
	"context"
	"sync"
	"time"

	"github.com/diewo77/go-stock/internal/models"
)

// AdminLoader fetches the current notification recipients.
type AdminLoader func(ctx context.Context) ([]models.Admin, error)

// AdminDirectory caches the recipient list with a TTL so that a burst of
// alerts does not hit the database once per event.
type AdminDirectory struct {
	load      AdminLoader
	ttl       time.Duration
	mu        sync.RWMutex
	admins    []models.Admin
	expiresAt time.Time
}

// NewAdminDirectory wraps a loader with caching.
func NewAdminDirectory(load AdminLoader, ttl time.Duration) *AdminDirectory {
	return &AdminDirectory{load: load, ttl: ttl}
}

// Admins returns the cached recipients, reloading once the entry expired.
func (d *AdminDirectory) Admins(ctx context.Context) ([]models.Admin, error) {
	d.mu.RLock()
	admins, fresh := d.admins, time.Now().Before(d.expiresAt)
	d.mu.RUnlock()
	if fresh {
		return admins, nil
	}

	admins, err := d.load(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.admins = admins
	d.expiresAt = time.Now().Add(d.ttl)
	d.mu.Unlock()
	return admins, nil
}

// Invalidate drops the cached list. Call it when admins are added or disabled.
func (d *AdminDirectory) Invalidate() {
	d.mu.Lock()
	d.admins = nil
	d.expiresAt = time.Time{}
	d.mu.Unlock()
}
