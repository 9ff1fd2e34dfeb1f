package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

// Resolver maps a subdomain to its tenant.
type Resolver interface {
	Resolve(ctx context.Context, subdomain string) (*models.Tenant, error)
}

// Directory is the central, non-tenant-scoped tenant registry.
type Directory struct {
	db database.DB
}

func NewDirectory(db database.DB) *Directory {
	return &Directory{db: db}
}

const tenantColumns = `id, merchant_id, subdomain, name, status, database_url, subscription_id, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.MerchantID, &t.Subdomain, &t.Name, &t.Status, &t.DatabaseURL,
		&t.SubscriptionID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Resolve returns the active or suspended tenant registered under subdomain.
// Subscription standing is left to the caller.
func (d *Directory) Resolve(ctx context.Context, subdomain string) (*models.Tenant, error) {
	t, err := scanTenant(d.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants
		 WHERE subdomain = $1 AND status IN ('active', 'suspended')`, subdomain))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve tenant %q: %w", subdomain, err)
	}
	return t, nil
}

func (d *Directory) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	t, err := scanTenant(d.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (d *Directory) GetByMerchant(ctx context.Context, merchantID uuid.UUID) (*models.Tenant, error) {
	t, err := scanTenant(d.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE merchant_id = $1`, merchantID))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by merchant: %w", err)
	}
	return t, nil
}

// SubdomainTaken reports whether any tenant, in any status, holds subdomain.
func (d *Directory) SubdomainTaken(ctx context.Context, subdomain string) (bool, error) {
	var taken bool
	err := d.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM tenants WHERE subdomain = $1)", subdomain,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check subdomain: %w", err)
	}
	return taken, nil
}

// Create inserts t using q, normally the registration transaction.
func (d *Directory) Create(ctx context.Context, q database.DB, t *models.Tenant) error {
	err := q.QueryRow(ctx,
		`INSERT INTO tenants (merchant_id, subdomain, name, status, database_url, subscription_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		t.MerchantID, t.Subdomain, t.Name, t.Status, t.DatabaseURL, t.SubscriptionID,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// UpdateStatus moves a tenant between statuses. Tenants are never deleted.
func (d *Directory) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TenantStatus) (*models.Tenant, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	t, err := scanTenant(d.db.QueryRow(ctx,
		`UPDATE tenants SET status = $2, updated_at = now() WHERE id = $1
		 RETURNING `+tenantColumns, id, status))
	if database.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update tenant status: %w", err)
	}
	return t, nil
}

func (d *Directory) List(ctx context.Context, status models.TenantStatus, limit, offset int) ([]models.Tenant, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + tenantColumns + ` FROM tenants`
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}
