package rental

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
)

const orderColumns = `id, merchant_id, outlet_id, customer_id, status, start_date, end_date, total, deposit, created_at, updated_at`

// transitions lists the statuses each order status may move to.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderPending:   {models.OrderConfirmed, models.OrderCancelled},
	models.OrderConfirmed: {models.OrderActive, models.OrderCancelled},
	models.OrderActive:    {models.OrderReturned},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RentalDays counts started days between start and end, at least one.
func RentalDays(start, end time.Time) int64 {
	hours := end.Sub(start).Hours()
	days := int64(hours / 24)
	if float64(days*24) < hours {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// LineTotal prices one order line: rate × quantity × days.
func LineTotal(rate decimal.Decimal, quantity int, days int64) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(quantity))).Mul(decimal.NewFromInt(days))
}

type OrderItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

type OrderInput struct {
	OutletID   uuid.UUID        `json:"outlet_id"`
	CustomerID uuid.UUID        `json:"customer_id" validate:"required"`
	StartDate  time.Time        `json:"start_date" validate:"required"`
	EndDate    time.Time        `json:"end_date" validate:"required"`
	Items      []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

type OrderFilter struct {
	Status   models.OrderStatus
	OutletID *uuid.UUID
	Limit    int
	Offset   int
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var status string
	if err := row.Scan(&o.ID, &o.MerchantID, &o.OutletID, &o.CustomerID, &status, &o.StartDate,
		&o.EndDate, &o.Total, &o.Deposit, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	return &o, nil
}

func (s *Service) ListOrders(ctx context.Context, db database.DB, a Access, f OrderFilter) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_id = $1`
	args := []any{a.MerchantID}

	outlet := f.OutletID
	if a.OutletID != nil {
		outlet = a.OutletID
	}
	if outlet != nil {
		args = append(args, *outlet)
		query += fmt.Sprintf(` AND outlet_id = $%d`, len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func getOrder(ctx context.Context, q database.DB, a Access, id uuid.UUID, lock string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND merchant_id = $2`
	args := []any{id, a.MerchantID}
	if a.OutletID != nil {
		query += ` AND outlet_id = $3`
		args = append(args, *a.OutletID)
	}
	o, err := scanOrder(q.QueryRow(ctx, query+lock, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func loadItems(ctx context.Context, q database.DB, o *models.Order) error {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, quantity, daily_rate, subtotal
		 FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	o.Items = nil
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.DailyRate, &it.Subtotal); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

// GetOrder returns an order with its items.
func (s *Service) GetOrder(ctx context.Context, db database.DB, a Access, id uuid.UUID) (*models.Order, error) {
	o, err := getOrder(ctx, db, a, id, "")
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, db, o); err != nil {
		return nil, err
	}
	return o, nil
}

// CreateOrder prices every line from the product's current daily rate and
// stores the order with its items in one transaction.
func (s *Service) CreateOrder(ctx context.Context, db database.DB, a Access, in OrderInput) (*models.Order, error) {
	if !in.EndDate.After(in.StartDate) {
		return nil, ErrInvalidPeriod
	}
	outletID, err := a.outlet(in.OutletID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOutlet(ctx, db, a, outletID); err != nil {
		return nil, err
	}
	if _, err := s.GetCustomer(ctx, db, a, in.CustomerID); err != nil {
		return nil, err
	}

	days := RentalDays(in.StartDate, in.EndDate)

	var out *models.Order
	err = s.enforcer.Guard(ctx, db, a.MerchantID, plan.CategoryOrders, func(tx pgx.Tx) error {
		total := decimal.Zero
		deposit := decimal.Zero
		items := make([]models.OrderItem, 0, len(in.Items))

		for _, line := range in.Items {
			p, err := getProduct(ctx, tx, a, line.ProductID)
			if err != nil {
				return err
			}
			if !p.Active || p.OutletID != outletID {
				return ErrProductUnavailable
			}
			sub := LineTotal(p.DailyRate, line.Quantity, days)
			total = total.Add(sub)
			deposit = deposit.Add(p.Deposit.Mul(decimal.NewFromInt(int64(line.Quantity))))
			items = append(items, models.OrderItem{
				ProductID: p.ID,
				Quantity:  line.Quantity,
				DailyRate: p.DailyRate,
				Subtotal:  sub,
			})
		}

		o, err := scanOrder(tx.QueryRow(ctx,
			`INSERT INTO orders (merchant_id, outlet_id, customer_id, status, start_date, end_date, total, deposit)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+orderColumns,
			a.MerchantID, outletID, in.CustomerID, string(models.OrderPending),
			in.StartDate, in.EndDate, total, deposit))
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range items {
			items[i].OrderID = o.ID
			if err := tx.QueryRow(ctx,
				`INSERT INTO order_items (order_id, merchant_id, product_id, quantity, daily_rate, subtotal)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 RETURNING id`,
				o.ID, a.MerchantID, items[i].ProductID, items[i].Quantity, items[i].DailyRate, items[i].Subtotal,
			).Scan(&items[i].ID); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		o.Items = items
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionOrder moves an order to status to when the state machine
// allows it.
func (s *Service) TransitionOrder(ctx context.Context, db database.DB, a Access, id uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	var out *models.Order
	err := database.InTx(ctx, db, func(tx pgx.Tx) error {
		o, err := getOrder(ctx, tx, a, id, " FOR UPDATE")
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
		}
		out, err = scanOrder(tx.QueryRow(ctx,
			`UPDATE orders SET status = $3, updated_at = NOW()
			 WHERE id = $1 AND merchant_id = $2
			 RETURNING `+orderColumns, id, a.MerchantID, string(to)))
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
