package cache

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"

	"villabook/internal/app/policies"
	domainproperties "villabook/internal/domain/properties"
)

const (
	DefaultTTL  = 30 * time.Second
	DefaultSize = 1000
)

// PropertyCache keeps recently read properties for cart views. Misses and errors
// are not cached.
type PropertyCache struct {
	next  policies.PropertyReader
	cache *ccache.Cache[*domainproperties.Property]
	ttl   time.Duration
}

func NewPropertyCache(next policies.PropertyReader, maxSize int64, ttl time.Duration) *PropertyCache {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PropertyCache{
		next:  next,
		cache: ccache.New(ccache.Configure[*domainproperties.Property]().MaxSize(maxSize)),
		ttl:   ttl,
	}
}

func (c *PropertyCache) Property(ctx context.Context, id domainproperties.PropertyID) (*domainproperties.Property, error) {
	if item := c.cache.Get(string(id)); item != nil && !item.Expired() {
		return clone(item.Value()), nil
	}
	p, err := c.next.Property(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(string(id), clone(p), c.ttl)
	return p, nil
}

// Forget drops the cached copy after an admin update.
func (c *PropertyCache) Forget(id domainproperties.PropertyID) {
	c.cache.Delete(string(id))
}

func (c *PropertyCache) Stop() {
	c.cache.Stop()
}

func clone(p *domainproperties.Property) *domainproperties.Property {
	return &domainproperties.Property{
		ID:          p.ID,
		Title:       p.Title,
		NightlyRate: p.NightlyRate,
		MaxGuests:   p.MaxGuests,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

var _ policies.PropertyReader = (*PropertyCache)(nil)
