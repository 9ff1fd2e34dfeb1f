package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalshop/internal/database/dbtest"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

type fakePool struct {
	*dbtest.Fake
	dsn    string
	closed atomic.Int32
}

func (p *fakePool) Close() { p.closed.Add(1) }

type poolFactory struct {
	mu     sync.Mutex
	opened []*fakePool
	opens  atomic.Int32
	delay  time.Duration
	err    error
}

func (f *poolFactory) open(_ context.Context, dsn string) (Pool, error) {
	f.opens.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePool{Fake: dbtest.New(), dsn: dsn}
	f.mu.Lock()
	f.opened = append(f.opened, p)
	f.mu.Unlock()
	return p, nil
}

func tenantWithDB(sub string) *models.Tenant {
	return &models.Tenant{Subdomain: sub, DatabaseURL: "postgres://db/" + sub}
}

func TestConnectorSharedSchemaUsesFallback(t *testing.T) {
	fallback := dbtest.New()
	factory := &poolFactory{}
	c, err := NewConnector(fallback, factory.open, 2)
	require.NoError(t, err)

	db, release, err := c.Acquire(context.Background(), &models.Tenant{Subdomain: "shared"})
	require.NoError(t, err)
	release()
	assert.Same(t, fallback, db)
	assert.Zero(t, factory.opens.Load())
	assert.Zero(t, c.Len())
}

func TestConnectorReusesPools(t *testing.T) {
	factory := &poolFactory{}
	c, err := NewConnector(dbtest.New(), factory.open, 4)
	require.NoError(t, err)

	first, releaseFirst, err := c.Acquire(context.Background(), tenantWithDB("alpha"))
	require.NoError(t, err)
	defer releaseFirst()
	second, releaseSecond, err := c.Acquire(context.Background(), tenantWithDB("alpha"))
	require.NoError(t, err)
	defer releaseSecond()

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), factory.opens.Load())
	assert.Equal(t, "postgres://db/alpha", first.(*fakePool).dsn)
}

func TestConnectorEvictsLeastRecentlyUsed(t *testing.T) {
	factory := &poolFactory{}
	c, err := NewConnector(dbtest.New(), factory.open, 2)
	require.NoError(t, err)
	ctx := context.Background()

	acquire := func(sub string) *fakePool {
		db, release, err := c.Acquire(ctx, tenantWithDB(sub))
		require.NoError(t, err)
		release()
		return db.(*fakePool)
	}

	a := acquire("alpha")
	acquire("beta")

	// touch alpha so beta becomes the eviction candidate
	acquire("alpha")
	acquire("gamma")

	assert.Equal(t, 2, c.Len())
	beta := factory.opened[1]
	require.Eventually(t, func() bool { return beta.closed.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, a.closed.Load())

	// beta must be reopened on next use
	acquire("beta")
	assert.Equal(t, int32(4), factory.opens.Load())
}

func TestConnectorCollapsesConcurrentOpens(t *testing.T) {
	factory := &poolFactory{delay: 20 * time.Millisecond}
	c, err := NewConnector(dbtest.New(), factory.open, 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := c.Acquire(context.Background(), tenantWithDB("busy"))
			if assert.NoError(t, err) {
				release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), factory.opens.Load())
}

func TestConnectorWrapsOpenFailures(t *testing.T) {
	factory := &poolFactory{err: errors.New("dial tcp: connection refused")}
	c, err := NewConnector(dbtest.New(), factory.open, 2)
	require.NoError(t, err)

	_, _, err = c.Acquire(context.Background(), tenantWithDB("down"))
	require.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, c.Len())
}

func TestConnectorCloseClosesAll(t *testing.T) {
	factory := &poolFactory{}
	c, err := NewConnector(dbtest.New(), factory.open, 4)
	require.NoError(t, err)

	for _, sub := range []string{"one", "two", "three"} {
		_, release, err := c.Acquire(context.Background(), tenantWithDB(sub))
		require.NoError(t, err)
		release()
	}

	c.Close()
	assert.Zero(t, c.Len())
	for _, p := range factory.opened {
		assert.Equal(t, int32(1), p.closed.Load(), p.dsn)
	}
}

func TestConnectorKeepsHeldPoolOpenThroughEviction(t *testing.T) {
	factory := &poolFactory{}
	c, err := NewConnector(dbtest.New(), factory.open, 1)
	require.NoError(t, err)
	ctx := context.Background()

	held, releaseHeld, err := c.Acquire(ctx, tenantWithDB("alpha"))
	require.NoError(t, err)
	alpha := held.(*fakePool)

	// beta takes the only slot while alpha is still serving a request
	_, releaseBeta, err := c.Acquire(ctx, tenantWithDB("beta"))
	require.NoError(t, err)
	defer releaseBeta()

	assert.Equal(t, 1, c.Len())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, alpha.closed.Load(), "evicted pool closed while in use")

	releaseHeld()
	require.Eventually(t, func() bool { return alpha.closed.Load() == 1 }, time.Second, 5*time.Millisecond)

	releaseHeld()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), alpha.closed.Load(), "release is idempotent")

	// alpha opens a fresh pool on next use
	again, releaseAgain, err := c.Acquire(ctx, tenantWithDB("alpha"))
	require.NoError(t, err)
	defer releaseAgain()
	assert.NotSame(t, alpha, again)
	assert.Equal(t, int32(3), factory.opens.Load())
}

func TestConnectorForgetDefersCloseUntilReleased(t *testing.T) {
	factory := &poolFactory{}
	c, err := NewConnector(dbtest.New(), factory.open, 4)
	require.NoError(t, err)

	db, release, err := c.Acquire(context.Background(), tenantWithDB("alpha"))
	require.NoError(t, err)
	p := db.(*fakePool)

	c.Forget("alpha")
	assert.Zero(t, c.Len())
	assert.Zero(t, p.closed.Load())

	c.Close()
	assert.Zero(t, p.closed.Load())

	release()
	assert.Equal(t, int32(1), p.closed.Load(), "closing connector closes on release synchronously")
}

func TestNewConnectorRejectsZeroCapacity(t *testing.T) {
	_, err := NewConnector(dbtest.New(), (&poolFactory{}).open, 0)
	require.Error(t, err)
}
