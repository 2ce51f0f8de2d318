package cache

import (
	"context"
	"sync"
	"time"

	"restopos/internal/core/id"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/domain/reports"
)

var (
	_ warehouse.DefaultCache = (*Local)(nil)
	_ reports.SummaryCache   = (*Local)(nil)
)

// Local is an in-process cache used when Redis is disabled.
// It is only coherent for a single instance.
type Local struct {
	mu         sync.RWMutex
	ttl        time.Duration
	summaryTTL time.Duration
	now        func() time.Time

	defaultID      id.ID
	defaultExpires time.Time
	summary        *reports.Summary
	summaryExpires time.Time
}

func NewLocal(ttl time.Duration) *Local {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Local{ttl: ttl, summaryTTL: defaultSummaryTTL, now: time.Now}
}

func (c *Local) GetDefault(context.Context) (id.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id.IsNil(c.defaultID) || !c.now().Before(c.defaultExpires) {
		return id.Nil(), false
	}
	return c.defaultID, true
}

func (c *Local) SetDefault(_ context.Context, warehouseID id.ID) {
	c.mu.Lock()
	c.defaultID = warehouseID
	c.defaultExpires = c.now().Add(c.ttl)
	c.mu.Unlock()
}

func (c *Local) InvalidateDefault(context.Context) {
	c.mu.Lock()
	c.defaultID = id.Nil()
	c.mu.Unlock()
}

func (c *Local) GetSummary(context.Context) (*reports.Summary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.summary == nil || !c.now().Before(c.summaryExpires) {
		return nil, false
	}
	// Return a copy to prevent callers mutating the cached value.
	cp := *c.summary
	return &cp, true
}

func (c *Local) SetSummary(_ context.Context, s *reports.Summary) {
	if s == nil {
		return
	}
	cp := *s
	c.mu.Lock()
	c.summary = &cp
	c.summaryExpires = c.now().Add(c.summaryTTL)
	c.mu.Unlock()
}
