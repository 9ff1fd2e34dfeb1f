package plan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/rentalshop/internal/database"
)

// LimitSource resolves the limits of the plan a merchant currently holds.
type LimitSource interface {
	LimitsForMerchant(ctx context.Context, merchantID uuid.UUID) (map[string]int64, error)
}

// countQueries count live rows per merchant. Users live in the directory
// store, everything else in the tenant store.
var countQueries = map[Category]string{
	CategoryOutlets:   `SELECT count(*) FROM outlets WHERE merchant_id = $1 AND deleted_at IS NULL`,
	CategoryUsers:     `SELECT count(*) FROM users WHERE merchant_id = $1 AND active`,
	CategoryProducts:  `SELECT count(*) FROM products WHERE merchant_id = $1 AND deleted_at IS NULL`,
	CategoryCustomers: `SELECT count(*) FROM customers WHERE merchant_id = $1`,
	CategoryOrders:    `SELECT count(*) FROM orders WHERE merchant_id = $1`,
}

type Enforcer struct {
	limits    LimitSource
	directory database.DB
}

func NewEnforcer(limits LimitSource, directory database.DB) *Enforcer {
	return &Enforcer{limits: limits, directory: directory}
}

// store picks where rows of c live.
func (e *Enforcer) store(c Category, tenantDB database.DB) database.DB {
	if c == CategoryUsers {
		return e.directory
	}
	return tenantDB
}

func count(ctx context.Context, q database.DB, c Category, merchantID uuid.UUID) (int64, error) {
	query, ok := countQueries[c]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	var n int64
	if err := q.QueryRow(ctx, query, merchantID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", c, err)
	}
	return n, nil
}

// Check reports current usage against the ceiling without reserving
// anything. Use Guard for creations.
func (e *Enforcer) Check(ctx context.Context, tenantDB database.DB, merchantID uuid.UUID, c Category) (Decision, error) {
	limits, err := e.limits.LimitsForMerchant(ctx, merchantID)
	if err != nil {
		return Decision{}, err
	}
	n, err := count(ctx, e.store(c, tenantDB), c, merchantID)
	if err != nil {
		return Decision{}, err
	}
	return Evaluate(limits, c, n), nil
}

// Usage evaluates every category.
func (e *Enforcer) Usage(ctx context.Context, tenantDB database.DB, merchantID uuid.UUID) ([]Decision, error) {
	limits, err := e.limits.LimitsForMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	out := make([]Decision, 0, len(Categories))
	for _, c := range Categories {
		n, err := count(ctx, e.store(c, tenantDB), c, merchantID)
		if err != nil {
			return nil, err
		}
		out = append(out, Evaluate(limits, c, n))
	}
	return out, nil
}

// Guard runs create inside a transaction that holds an advisory lock on
// (merchant, category) while the count is taken, so concurrent creations
// for the same merchant serialize and cannot overshoot the ceiling. create
// must perform its insert on the given tx.
func (e *Enforcer) Guard(ctx context.Context, tenantDB database.DB, merchantID uuid.UUID, c Category, create func(tx pgx.Tx) error) error {
	limits, err := e.limits.LimitsForMerchant(ctx, merchantID)
	if err != nil {
		return err
	}

	return database.InTx(ctx, e.store(c, tenantDB), func(tx pgx.Tx) error {
		if Ceiling(limits, c) != Unlimited {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
				lockKey(merchantID, c)); err != nil {
				return fmt.Errorf("lock %s: %w", c, err)
			}
			n, err := count(ctx, tx, c, merchantID)
			if err != nil {
				return err
			}
			if d := Evaluate(limits, c, n); !d.Allowed {
				return denied(d)
			}
		}
		return create(tx)
	})
}

func lockKey(merchantID uuid.UUID, c Category) string {
	return "plan-limit:" + merchantID.String() + ":" + string(c)
}
