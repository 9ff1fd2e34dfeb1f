package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Outlet struct {
	ID         uuid.UUID `json:"id" db:"id"`
	MerchantID uuid.UUID `json:"merchant_id" db:"merchant_id"`
	Name       string    `json:"name" db:"name"`
	Address    string    `json:"address,omitempty" db:"address"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Product struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	MerchantID uuid.UUID       `json:"merchant_id" db:"merchant_id"`
	OutletID   uuid.UUID       `json:"outlet_id" db:"outlet_id"`
	Name       string          `json:"name" db:"name"`
	SKU        string          `json:"sku,omitempty" db:"sku"`
	DailyRate  decimal.Decimal `json:"daily_rate" db:"daily_rate"`
	Deposit    decimal.Decimal `json:"deposit" db:"deposit"`
	Stock      int             `json:"stock" db:"stock"`
	Active     bool            `json:"active" db:"active"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

type Customer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	MerchantID uuid.UUID `json:"merchant_id" db:"merchant_id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email,omitempty" db:"email"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderActive    OrderStatus = "active"
	OrderReturned  OrderStatus = "returned"
	OrderCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	MerchantID uuid.UUID       `json:"merchant_id" db:"merchant_id"`
	OutletID   uuid.UUID       `json:"outlet_id" db:"outlet_id"`
	CustomerID uuid.UUID       `json:"customer_id" db:"customer_id"`
	Status     OrderStatus     `json:"status" db:"status"`
	StartDate  time.Time       `json:"start_date" db:"start_date"`
	EndDate    time.Time       `json:"end_date" db:"end_date"`
	Total      decimal.Decimal `json:"total" db:"total"`
	Deposit    decimal.Decimal `json:"deposit" db:"deposit"`
	Items      []OrderItem     `json:"items,omitempty"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	DailyRate decimal.Decimal `json:"daily_rate" db:"daily_rate"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
}
