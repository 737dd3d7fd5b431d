package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/glamexpress/internal/domain"
)

// MemoryCache is the single-process stand-in for RedisCache.
type MemoryCache struct {
	mu         sync.Mutex
	now        func() time.Time
	bookingTTL time.Duration
	bookings   map[string]memoryEntry
	locks      map[string]time.Time
}

type memoryEntry struct {
	booking   *domain.Booking
	expiresAt time.Time
}

func NewMemoryCache(bookingTTL time.Duration, now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		now:        now,
		bookingTTL: bookingTTL,
		bookings:   make(map[string]memoryEntry),
		locks:      make(map[string]time.Time),
	}
}

func (c *MemoryCache) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.bookings[id]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.bookings, id)
		return nil, nil
	}
	return e.booking.Clone(), nil
}

func (c *MemoryCache) SetBooking(_ context.Context, b *domain.Booking) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{booking: b.Clone()}
	if c.bookingTTL > 0 {
		e.expiresAt = c.now().Add(c.bookingTTL)
	}
	c.bookings[b.ID] = e
	return nil
}

func (c *MemoryCache) DeleteBooking(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bookings, id)
	return nil
}

func (c *MemoryCache) AcquireActionLock(_ context.Context, bookingID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if until, held := c.locks[bookingID]; held && now.Before(until) {
		return false, nil
	}
	c.locks[bookingID] = now.Add(ttl)
	return true, nil
}

func (c *MemoryCache) ReleaseActionLock(_ context.Context, bookingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, bookingID)
	return nil
}
