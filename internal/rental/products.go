package rental

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
)

const productColumns = `id, merchant_id, outlet_id, name, sku, daily_rate, deposit, stock, active, created_at`

type ProductInput struct {
	OutletID  uuid.UUID       `json:"outlet_id"`
	Name      string          `json:"name" validate:"required,max=200"`
	SKU       string          `json:"sku,omitempty" validate:"max=100"`
	DailyRate decimal.Decimal `json:"daily_rate"`
	Deposit   decimal.Decimal `json:"deposit"`
	Stock     int             `json:"stock" validate:"gte=0"`
	Active    *bool           `json:"active,omitempty"`
}

func (in ProductInput) check() error {
	if in.DailyRate.IsNegative() || in.Deposit.IsNegative() {
		return fmt.Errorf("%w: prices must not be negative", errInvalidAmount)
	}
	return nil
}

type ProductFilter struct {
	OutletID *uuid.UUID
	Search   string
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.MerchantID, &p.OutletID, &p.Name, &p.SKU, &p.DailyRate,
		&p.Deposit, &p.Stock, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) ListProducts(ctx context.Context, db database.DB, a Access, f ProductFilter) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE merchant_id = $1 AND deleted_at IS NULL`
	args := []any{a.MerchantID}

	outlet := f.OutletID
	if a.OutletID != nil {
		outlet = a.OutletID
	}
	if outlet != nil {
		args = append(args, *outlet)
		query += fmt.Sprintf(` AND outlet_id = $%d`, len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR sku ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY name`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Service) GetProduct(ctx context.Context, db database.DB, a Access, id uuid.UUID) (*models.Product, error) {
	return getProduct(ctx, db, a, id)
}

func getProduct(ctx context.Context, q database.DB, a Access, id uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND merchant_id = $2 AND deleted_at IS NULL`
	args := []any{id, a.MerchantID}
	if a.OutletID != nil {
		query += ` AND outlet_id = $3`
		args = append(args, *a.OutletID)
	}
	p, err := scanProduct(q.QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Service) CreateProduct(ctx context.Context, db database.DB, a Access, in ProductInput) (*models.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	outletID, err := a.outlet(in.OutletID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOutlet(ctx, db, a, outletID); err != nil {
		return nil, err
	}
	active := in.Active == nil || *in.Active

	var out *models.Product
	err = s.enforcer.Guard(ctx, db, a.MerchantID, plan.CategoryProducts, func(tx pgx.Tx) error {
		p, err := scanProduct(tx.QueryRow(ctx,
			`INSERT INTO products (merchant_id, outlet_id, name, sku, daily_rate, deposit, stock, active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+productColumns,
			a.MerchantID, outletID, in.Name, in.SKU, in.DailyRate, in.Deposit, in.Stock, active))
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) UpdateProduct(ctx context.Context, db database.DB, a Access, id uuid.UUID, in ProductInput) (*models.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	current, err := s.GetProduct(ctx, db, a, id)
	if err != nil {
		return nil, err
	}
	outletID := current.OutletID
	if in.OutletID != uuid.Nil && in.OutletID != outletID {
		if outletID, err = a.outlet(in.OutletID); err != nil {
			return nil, err
		}
		if _, err := s.GetOutlet(ctx, db, a, outletID); err != nil {
			return nil, err
		}
	}

	p, err := scanProduct(db.QueryRow(ctx,
		`UPDATE products SET outlet_id = $3, name = $4, sku = $5, daily_rate = $6, deposit = $7,
		        stock = $8, active = COALESCE($9, active)
		 WHERE id = $1 AND merchant_id = $2 AND deleted_at IS NULL
		 RETURNING `+productColumns,
		id, a.MerchantID, outletID, in.Name, in.SKU, in.DailyRate, in.Deposit, in.Stock, in.Active))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// DeleteProduct retires a product; past orders keep referencing it.
func (s *Service) DeleteProduct(ctx context.Context, db database.DB, a Access, id uuid.UUID) error {
	if _, err := s.GetProduct(ctx, db, a, id); err != nil {
		return err
	}
	_, err := db.Exec(ctx,
		`UPDATE products SET active = FALSE, deleted_at = NOW()
		 WHERE id = $1 AND merchant_id = $2 AND deleted_at IS NULL`, id, a.MerchantID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
