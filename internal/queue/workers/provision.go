package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/queue"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

// TenantLookup finds the tenant a provision task refers to.
type TenantLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// ProvisionWorker creates a tenant's database on the directory server and
// applies the tenant schema to it.
type ProvisionWorker struct {
	tenants    TenantLookup
	admin      database.DB
	open       tenant.Opener
	migrations string
}

func NewProvisionWorker(tenants TenantLookup, admin database.DB, open tenant.Opener, migrationsPath string) *ProvisionWorker {
	return &ProvisionWorker{tenants: tenants, admin: admin, open: open, migrations: migrationsPath}
}

func (w *ProvisionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TenantProvisionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return fmt.Errorf("parse tenant ID: %w: %w", err, asynq.SkipRetry)
	}

	tn, err := w.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("get tenant: %w", err)
	}
	if tn.DatabaseURL == "" {
		slog.Info("tenant uses shared schema, nothing to provision", "tenant_id", tenantID)
		return nil
	}

	slog.Info("provisioning tenant database", "tenant_id", tenantID, "subdomain", tn.Subdomain)

	if err := w.ensureDatabase(ctx, tn.DatabaseURL); err != nil {
		return err
	}

	pool, err := w.open(ctx, tn.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open tenant database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, w.migrations); err != nil {
		return fmt.Errorf("migrate tenant database: %w", err)
	}

	slog.Info("tenant database ready", "tenant_id", tenantID)
	return nil
}

// ensureDatabase creates the database named in dsn unless it exists.
func (w *ProvisionWorker) ensureDatabase(ctx context.Context, dsn string) error {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse tenant DSN: %w: %w", err, asynq.SkipRetry)
	}
	name := cfg.Database
	if name == "" {
		return fmt.Errorf("tenant DSN names no database: %w", asynq.SkipRetry)
	}

	var exists bool
	if err := w.admin.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check database: %w", err)
	}
	if exists {
		return nil
	}

	// CREATE DATABASE takes no bind parameters
	if _, err := w.admin.Exec(ctx, `CREATE DATABASE `+pgx.Identifier{name}.Sanitize()); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}
