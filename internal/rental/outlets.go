package rental

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
)

const outletColumns = `id, merchant_id, name, address, phone, active, created_at`

type OutletInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address,omitempty" validate:"max=500"`
	Phone   string `json:"phone,omitempty" validate:"max=50"`
	Active  *bool  `json:"active,omitempty"`
}

func scanOutlet(row pgx.Row) (*models.Outlet, error) {
	var o models.Outlet
	if err := row.Scan(&o.ID, &o.MerchantID, &o.Name, &o.Address, &o.Phone, &o.Active, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Service) ListOutlets(ctx context.Context, db database.DB, a Access) ([]models.Outlet, error) {
	query := `SELECT ` + outletColumns + ` FROM outlets WHERE merchant_id = $1 AND deleted_at IS NULL`
	args := []any{a.MerchantID}
	if a.OutletID != nil {
		query += ` AND id = $2`
		args = append(args, *a.OutletID)
	}
	query += ` ORDER BY name`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outlets: %w", err)
	}
	defer rows.Close()

	var out []models.Outlet
	for rows.Next() {
		o, err := scanOutlet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outlet: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *Service) GetOutlet(ctx context.Context, db database.DB, a Access, id uuid.UUID) (*models.Outlet, error) {
	if _, err := a.outlet(id); err != nil {
		return nil, ErrOutletNotFound
	}
	o, err := scanOutlet(db.QueryRow(ctx,
		`SELECT `+outletColumns+` FROM outlets WHERE id = $1 AND merchant_id = $2 AND deleted_at IS NULL`,
		id, a.MerchantID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrOutletNotFound
		}
		return nil, fmt.Errorf("get outlet: %w", err)
	}
	return o, nil
}

func (s *Service) CreateOutlet(ctx context.Context, db database.DB, a Access, in OutletInput) (*models.Outlet, error) {
	active := in.Active == nil || *in.Active

	var out *models.Outlet
	err := s.enforcer.Guard(ctx, db, a.MerchantID, plan.CategoryOutlets, func(tx pgx.Tx) error {
		o, err := scanOutlet(tx.QueryRow(ctx,
			`INSERT INTO outlets (merchant_id, name, address, phone, active)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+outletColumns,
			a.MerchantID, in.Name, in.Address, in.Phone, active))
		if err != nil {
			return fmt.Errorf("insert outlet: %w", err)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) UpdateOutlet(ctx context.Context, db database.DB, a Access, id uuid.UUID, in OutletInput) (*models.Outlet, error) {
	o, err := scanOutlet(db.QueryRow(ctx,
		`UPDATE outlets SET name = $3, address = $4, phone = $5, active = COALESCE($6, active)
		 WHERE id = $1 AND merchant_id = $2 AND deleted_at IS NULL
		 RETURNING `+outletColumns,
		id, a.MerchantID, in.Name, in.Address, in.Phone, in.Active))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrOutletNotFound
		}
		return nil, fmt.Errorf("update outlet: %w", err)
	}
	return o, nil
}

// DeleteOutlet retires an outlet. The row stays for order history.
func (s *Service) DeleteOutlet(ctx context.Context, db database.DB, a Access, id uuid.UUID) error {
	tag, err := db.Exec(ctx,
		`UPDATE outlets SET active = FALSE, deleted_at = NOW()
		 WHERE id = $1 AND merchant_id = $2 AND deleted_at IS NULL`, id, a.MerchantID)
	if err != nil {
		return fmt.Errorf("delete outlet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOutletNotFound
	}
	return nil
}
