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

const customerColumns = `id, merchant_id, name, email, phone, created_at`

type CustomerInput struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone string `json:"phone,omitempty" validate:"max=50"`
}

func scanCustomer(row pgx.Row) (*models.Customer, error) {
	var c models.Customer
	if err := row.Scan(&c.ID, &c.MerchantID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCustomers returns the merchant's customers, optionally matching
// search against name, email or phone.
func (s *Service) ListCustomers(ctx context.Context, db database.DB, a Access, search string, limit, offset int) ([]models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE merchant_id = $1`
	args := []any{a.MerchantID}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += ` AND (name ILIKE $2 OR email ILIKE $2 OR phone ILIKE $2)`
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Service) GetCustomer(ctx context.Context, db database.DB, a Access, id uuid.UUID) (*models.Customer, error) {
	c, err := scanCustomer(db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND merchant_id = $2`, id, a.MerchantID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *Service) CreateCustomer(ctx context.Context, db database.DB, a Access, in CustomerInput) (*models.Customer, error) {
	var out *models.Customer
	err := s.enforcer.Guard(ctx, db, a.MerchantID, plan.CategoryCustomers, func(tx pgx.Tx) error {
		c, err := scanCustomer(tx.QueryRow(ctx,
			`INSERT INTO customers (merchant_id, name, email, phone)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+customerColumns,
			a.MerchantID, in.Name, in.Email, in.Phone))
		if err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, db database.DB, a Access, id uuid.UUID, in CustomerInput) (*models.Customer, error) {
	c, err := scanCustomer(db.QueryRow(ctx,
		`UPDATE customers SET name = $3, email = $4, phone = $5
		 WHERE id = $1 AND merchant_id = $2
		 RETURNING `+customerColumns,
		id, a.MerchantID, in.Name, in.Email, in.Phone))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return c, nil
}
