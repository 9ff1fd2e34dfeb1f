package plan

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/database/dbtest"
)

func TestEvaluate(t *testing.T) {
	limits := map[string]int64{"outlets": 3, "users": 0, "orders": -1}

	tests := []struct {
		name    string
		cat     Category
		current int64
		allowed bool
		limit   int64
	}{
		{"below ceiling", CategoryOutlets, 2, true, 3},
		{"at ceiling", CategoryOutlets, 3, false, 3},
		{"above ceiling", CategoryOutlets, 7, false, 3},
		{"zero ceiling", CategoryUsers, 0, false, 0},
		{"negative means unlimited", CategoryOrders, 1_000_000, true, Unlimited},
		{"missing means unlimited", CategoryProducts, 42, true, Unlimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(limits, tt.cat, tt.current)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.limit, d.Ceiling)
			assert.Equal(t, tt.limit == Unlimited, d.Unlimited)
			assert.Equal(t, tt.current, d.Current)
		})
	}
}

func TestValidateLimits(t *testing.T) {
	assert.NoError(t, ValidateLimits(map[string]int64{"outlets": 1, "customers": 5}))
	assert.ErrorIs(t, ValidateLimits(map[string]int64{"widgets": 1}), ErrUnknownCategory)
}

type staticLimits struct {
	limits map[string]int64
	err    error
}

func (s staticLimits) LimitsForMerchant(context.Context, uuid.UUID) (map[string]int64, error) {
	return s.limits, s.err
}

func countResult(n int64) dbtest.Handler {
	return func(string, []any) dbtest.Result { return dbtest.Single(n) }
}

func TestGuardDeniesAtCeiling(t *testing.T) {
	tenantDB := dbtest.New().
		Return("pg_advisory_xact_lock", dbtest.Result{Tag: "SELECT 1"}).
		On("FROM outlets", countResult(3))
	e := NewEnforcer(staticLimits{limits: map[string]int64{"outlets": 3}}, dbtest.New())

	created := false
	err := e.Guard(context.Background(), tenantDB, uuid.New(), CategoryOutlets, func(pgx.Tx) error {
		created = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, created)

	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, int64(3), le.Decision.Current)

	ae := apperr.From(err)
	assert.Equal(t, http.StatusConflict, ae.Status)
	assert.Equal(t, CodeLimitExceeded, ae.Code)
	assert.Zero(t, tenantDB.Commits)
}

func TestGuardLocksCountsAndCreatesInOneTx(t *testing.T) {
	merchant := uuid.New()
	tenantDB := dbtest.New().
		On("pg_advisory_xact_lock", func(_ string, args []any) dbtest.Result {
			assert.Equal(t, "plan-limit:"+merchant.String()+":outlets", args[0])
			return dbtest.Result{Tag: "SELECT 1"}
		}).
		On("FROM outlets", countResult(2)).
		Return("INSERT INTO outlets", dbtest.Affected(1))
	e := NewEnforcer(staticLimits{limits: map[string]int64{"outlets": 3}}, dbtest.New())

	err := e.Guard(context.Background(), tenantDB, merchant, CategoryOutlets, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "INSERT INTO outlets (name) VALUES ($1)", "Main")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tenantDB.Commits)

	calls := tenantDB.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0].SQL, "pg_advisory_xact_lock")
	assert.Contains(t, calls[1].SQL, "count(*)")
	assert.Contains(t, calls[2].SQL, "INSERT INTO outlets")
	for _, c := range calls {
		assert.True(t, c.InTx, c.SQL)
	}
}

func TestGuardUnlimitedSkipsCount(t *testing.T) {
	tenantDB := dbtest.New().Return("INSERT INTO orders", dbtest.Affected(1))
	e := NewEnforcer(staticLimits{limits: map[string]int64{}}, dbtest.New())

	err := e.Guard(context.Background(), tenantDB, uuid.New(), CategoryOrders, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "INSERT INTO orders DEFAULT VALUES")
		return err
	})
	require.NoError(t, err)
	assert.False(t, tenantDB.Called("count(*)"))
}

func TestGuardUsersRunOnDirectory(t *testing.T) {
	directory := dbtest.New().
		Return("pg_advisory_xact_lock", dbtest.Result{}).
		On("FROM users", countResult(1))
	tenantDB := dbtest.New()
	e := NewEnforcer(staticLimits{limits: map[string]int64{"users": 5}}, directory)

	require.NoError(t, e.Guard(context.Background(), tenantDB, uuid.New(), CategoryUsers, func(pgx.Tx) error { return nil }))
	assert.Empty(t, tenantDB.Calls())
	assert.Equal(t, 1, directory.Commits)
}

func TestGuardPropagatesLimitSourceErrors(t *testing.T) {
	boom := errors.New("no subscription")
	e := NewEnforcer(staticLimits{err: boom}, dbtest.New())

	err := e.Guard(context.Background(), dbtest.New(), uuid.New(), CategoryOutlets, func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestUsageReportsEveryCategory(t *testing.T) {
	tdb := dbtest.New()
	tdb.Fallback = countResult(4)
	directory := dbtest.New().On("FROM users", countResult(2))
	e := NewEnforcer(staticLimits{limits: map[string]int64{"users": 2, "outlets": 10}}, directory)

	usage, err := e.Usage(context.Background(), tdb, uuid.New())
	require.NoError(t, err)
	require.Len(t, usage, len(Categories))

	byCat := map[Category]Decision{}
	for _, d := range usage {
		byCat[d.Category] = d
	}
	assert.False(t, byCat[CategoryUsers].Allowed)
	assert.True(t, byCat[CategoryOutlets].Allowed)
	assert.Equal(t, int64(4), byCat[CategoryOutlets].Current)
	assert.True(t, byCat[CategoryProducts].Unlimited)
}

func planRow(code string, limits string) []any {
	now := time.Now()
	return []any{uuid.New(), code, "Starter", "19.99", "USD", 14, []byte(limits), true, now, now}
}

func TestServiceGetByCodeDecodesLimits(t *testing.T) {
	db := dbtest.New().On("FROM plans", func(_ string, args []any) dbtest.Result {
		assert.Equal(t, "starter", args[0])
		return dbtest.Result{Rows: [][]any{planRow("starter", `{"outlets": 1, "products": 100}`)}}
	})

	p, err := NewService(db).GetByCode(context.Background(), "Starter")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Limits["products"])
	assert.Equal(t, "19.99", p.Price.StringFixed(2))
}

func TestServiceGetMissing(t *testing.T) {
	_, err := NewService(dbtest.New().Return("FROM plans", dbtest.Result{})).Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceCreate(t *testing.T) {
	db := dbtest.New().On("INSERT INTO plans", func(_ string, args []any) dbtest.Result {
		assert.Equal(t, "pro", args[0])
		assert.Equal(t, "EUR", args[3])
		assert.JSONEq(t, `{"outlets": 5}`, string(args[5].([]byte)))
		return dbtest.Result{Rows: [][]any{planRow("pro", `{"outlets": 5}`)}}
	})

	p, err := NewService(db).Create(context.Background(), Input{Code: " PRO ", Name: "Pro", Currency: "eur", Limits: map[string]int64{"outlets": 5}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Limits["outlets"])
}

func TestServiceCreateRejects(t *testing.T) {
	dup := dbtest.New().Return("INSERT INTO plans", dbtest.Fail(&pgconn.PgError{Code: "23505", ConstraintName: "plans_code_key"}))
	_, err := NewService(dup).Create(context.Background(), Input{Code: "starter", Name: "Starter"})
	assert.ErrorIs(t, err, ErrCodeTaken)

	_, err = NewService(dbtest.New()).Create(context.Background(), Input{Code: "x1", Name: "X", Limits: map[string]int64{"seats": 1}})
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
