package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

// Pool is a closable tenant data-store handle.
type Pool interface {
	database.DB
	Close()
}

// Opener dials a tenant store from its connection descriptor.
type Opener func(ctx context.Context, dsn string) (Pool, error)

// PgxOpener opens pgx pools capped at maxConns connections.
func PgxOpener(maxConns int) Opener {
	return func(ctx context.Context, dsn string) (Pool, error) {
		p, err := database.Open(ctx, dsn, maxConns, 0)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Connector hands out per-tenant store handles. Pools are kept in an LRU of
// fixed capacity; the least recently used pool is evicted when a new tenant
// needs room. An evicted pool is closed once every request holding it has
// released it. Tenants without their own descriptor share the fallback DB.
type Connector struct {
	fallback database.DB
	open     Opener
	pools    *lru.Cache[string, *lease]
	group    singleflight.Group
	closing  atomic.Bool

	mu sync.Mutex // guards lease refs and flags
}

type lease struct {
	subdomain string
	pool      Pool
	refs      int
	evicted   bool
	closed    bool
}

func NewConnector(fallback database.DB, open Opener, capacity int) (*Connector, error) {
	c := &Connector{fallback: fallback, open: open}
	pools, err := lru.NewWithEvict[string, *lease](capacity, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("create tenant pool cache: %w", err)
	}
	c.pools = pools
	return c, nil
}

func (c *Connector) evicted(subdomain string, l *lease) {
	c.mu.Lock()
	l.evicted = true
	idle := l.refs == 0 && !l.closed
	if idle {
		l.closed = true
	}
	refs := l.refs
	c.mu.Unlock()

	if !idle {
		slog.Info("evicting tenant pool, close deferred until released", "subdomain", subdomain, "in_use", refs)
		return
	}
	slog.Info("evicting tenant pool", "subdomain", subdomain)
	c.closePool(l.pool)
}

func (c *Connector) closePool(p Pool) {
	if c.closing.Load() {
		p.Close()
		return
	}
	// Close blocks until in-flight connections are released.
	go p.Close()
}

func (c *Connector) release(l *lease) {
	c.mu.Lock()
	l.refs--
	drained := l.evicted && l.refs == 0 && !l.closed
	if drained {
		l.closed = true
	}
	c.mu.Unlock()

	if drained {
		slog.Info("closing released tenant pool", "subdomain", l.subdomain)
		c.closePool(l.pool)
	}
}

// Acquire returns the data-store handle for t and a release func the caller
// must invoke once done with it. The pool is not closed while held, even if
// it is evicted meanwhile. Failures wrap ErrConnection and are not retried.
func (c *Connector) Acquire(ctx context.Context, t *models.Tenant) (database.DB, func(), error) {
	if t.DatabaseURL == "" {
		return c.fallback, func() {}, nil
	}

	for {
		l, err := c.lookup(ctx, t)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrConnection, t.Subdomain, err)
		}

		c.mu.Lock()
		if l.evicted {
			// lost a race with eviction; take the replacement
			c.mu.Unlock()
			continue
		}
		l.refs++
		c.mu.Unlock()

		var once sync.Once
		return l.pool, func() { once.Do(func() { c.release(l) }) }, nil
	}
}

func (c *Connector) lookup(ctx context.Context, t *models.Tenant) (*lease, error) {
	if l, ok := c.pools.Get(t.Subdomain); ok {
		return l, nil
	}

	v, err, _ := c.group.Do(t.Subdomain, func() (any, error) {
		if l, ok := c.pools.Get(t.Subdomain); ok {
			return l, nil
		}
		p, err := c.open(ctx, t.DatabaseURL)
		if err != nil {
			return nil, err
		}
		l := &lease{subdomain: t.Subdomain, pool: p}
		c.pools.Add(t.Subdomain, l)
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*lease), nil
}

// Forget drops the pool of subdomain, if cached. It is closed once released.
func (c *Connector) Forget(subdomain string) {
	c.pools.Remove(subdomain)
}

func (c *Connector) Len() int {
	return c.pools.Len()
}

// Close evicts every cached pool. Idle pools are closed before it returns;
// pools still held close on release.
func (c *Connector) Close() {
	c.closing.Store(true)
	c.pools.Purge()
}
