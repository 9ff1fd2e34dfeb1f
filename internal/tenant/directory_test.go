package tenant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalshop/internal/database/dbtest"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

func tenantRow(id uuid.UUID, sub string, status models.TenantStatus) []any {
	now := time.Now()
	return []any{id, uuid.New(), sub, "Shop " + sub, string(status), "", nil, now, now}
}

func TestDirectoryResolveOnlyActiveOrSuspended(t *testing.T) {
	id := uuid.New()
	fake := dbtest.New().On("FROM tenants", func(sql string, args []any) dbtest.Result {
		assert.Contains(t, sql, "status IN ('active', 'suspended')")
		if args[0] == "shop1" {
			return dbtest.Result{Rows: [][]any{tenantRow(id, "shop1", models.TenantSuspended)}}
		}
		return dbtest.Result{}
	})
	d := NewDirectory(fake)

	got, err := d.Resolve(context.Background(), "shop1")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.TenantSuspended, got.Status)

	_, err = d.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirectoryUpdateStatus(t *testing.T) {
	id := uuid.New()
	fake := dbtest.New().On("UPDATE tenants", func(_ string, args []any) dbtest.Result {
		return dbtest.Result{Rows: [][]any{tenantRow(id, "shop1", args[1].(models.TenantStatus))}}
	})
	d := NewDirectory(fake)

	got, err := d.UpdateStatus(context.Background(), id, models.TenantCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.TenantCancelled, got.Status)

	_, err = d.UpdateStatus(context.Background(), id, "deleted")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.False(t, fake.Called("DELETE"), "tenants are never hard-deleted")
}

func TestDirectoryListBuildsFilteredQuery(t *testing.T) {
	fake := dbtest.New().On("FROM tenants", func(sql string, args []any) dbtest.Result {
		assert.True(t, strings.Contains(sql, "WHERE status = $1"))
		assert.Contains(t, sql, "LIMIT $2 OFFSET $3")
		assert.Equal(t, []any{models.TenantActive, 10, 20}, args)
		return dbtest.Result{Rows: [][]any{
			tenantRow(uuid.New(), "a1", models.TenantActive),
			tenantRow(uuid.New(), "b2", models.TenantActive),
		}}
	})

	got, err := NewDirectory(fake).List(context.Background(), models.TenantActive, 10, 20)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "b2", got[1].Subdomain)
}

func TestDirectoryCreateUsesGivenQuerier(t *testing.T) {
	directoryDB := dbtest.New()
	tx := dbtest.New().Return("INSERT INTO tenants", dbtest.Single(uuid.New(), time.Now(), time.Now()))

	tn := &models.Tenant{MerchantID: uuid.New(), Subdomain: "new-shop", Name: "New Shop", Status: models.TenantActive}
	require.NoError(t, NewDirectory(directoryDB).Create(context.Background(), tx, tn))

	assert.NotEqual(t, uuid.Nil, tn.ID)
	assert.Empty(t, directoryDB.Calls())
}
