package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

const planColumns = `id, code, name, price, currency, trial_days, limits, active, created_at, updated_at`

// Input carries the editable fields of a plan.
type Input struct {
	Code      string           `json:"code" validate:"required,min=2,max=50"`
	Name      string           `json:"name" validate:"required,max=100"`
	Price     decimal.Decimal  `json:"price"`
	Currency  string           `json:"currency" validate:"omitempty,len=3"`
	TrialDays int              `json:"trial_days" validate:"gte=0,lte=365"`
	Limits    map[string]int64 `json:"limits"`
	Active    *bool            `json:"active,omitempty"`
}

// Service manages the plan catalogue in the directory store.
type Service struct {
	db database.DB
}

func NewService(db database.DB) *Service {
	return &Service{db: db}
}

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var p models.Plan
	var limits []byte
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Price, &p.Currency, &p.TrialDays,
		&limits, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Limits = map[string]int64{}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &p.Limits); err != nil {
			return nil, fmt.Errorf("decode plan limits: %w", err)
		}
	}
	return &p, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY price, name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return s.get(ctx, s.db, `WHERE id = $1`, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*models.Plan, error) {
	return s.get(ctx, s.db, `WHERE code = $1`, strings.ToLower(code))
}

// GetByCodeTx reads a plan through q, for callers inside a transaction.
func (s *Service) GetByCodeTx(ctx context.Context, q database.DB, code string) (*models.Plan, error) {
	return s.get(ctx, q, `WHERE code = $1`, strings.ToLower(code))
}

func (s *Service) get(ctx context.Context, q database.DB, where string, arg any) (*models.Plan, error) {
	p, err := scanPlan(q.QueryRow(ctx, `SELECT `+planColumns+` FROM plans `+where, arg))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func normalize(in *Input) (limits []byte, err error) {
	if err := ValidateLimits(in.Limits); err != nil {
		return nil, err
	}
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))
	in.Currency = strings.ToUpper(in.Currency)
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.Limits == nil {
		in.Limits = map[string]int64{}
	}
	return json.Marshal(in.Limits)
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Plan, error) {
	limits, err := normalize(&in)
	if err != nil {
		return nil, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	p, err := scanPlan(s.db.QueryRow(ctx,
		`INSERT INTO plans (code, name, price, currency, trial_days, limits, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+planColumns,
		in.Code, in.Name, in.Price, in.Currency, in.TrialDays, limits, active,
	))
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return p, nil
}

// Update replaces the editable fields of a plan. Existing subscriptions
// pick up new limits on their next check.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*models.Plan, error) {
	limits, err := normalize(&in)
	if err != nil {
		return nil, err
	}

	p, err := scanPlan(s.db.QueryRow(ctx,
		`UPDATE plans SET code = $2, name = $3, price = $4, currency = $5, trial_days = $6,
		        limits = $7, active = COALESCE($8, active), updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+planColumns,
		id, in.Code, in.Name, in.Price, in.Currency, in.TrialDays, limits, in.Active,
	))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		if database.IsUniqueViolation(err, "") {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return p, nil
}
