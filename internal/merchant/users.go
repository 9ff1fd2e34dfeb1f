package merchant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/auth"
	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
)

const userColumns = `id, merchant_id, outlet_id, email, full_name, role, password_hash, active, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.MerchantID, &u.OutletID, &u.Email, &u.FullName, &role,
		&u.PasswordHash, &u.Active, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

func insertUser(ctx context.Context, q database.DB, u *models.User) (*models.User, error) {
	out, err := scanUser(q.QueryRow(ctx,
		`INSERT INTO users (merchant_id, outlet_id, email, full_name, role, password_hash, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+userColumns,
		u.MerchantID, u.OutletID, u.Email, u.FullName, string(u.Role), u.PasswordHash, u.Active,
	))
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return out, nil
}

func (s *Service) getUser(ctx context.Context, where string, args ...any) (*models.User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserByID loads an account for token authentication.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *Service) userByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

type CreateUserInput struct {
	Email    string      `json:"email" validate:"required,email,max=254"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	FullName string      `json:"full_name" validate:"required,max=200"`
	Role     models.Role `json:"role" validate:"required,oneof=MERCHANT OUTLET_ADMIN OUTLET_STAFF"`
	OutletID *uuid.UUID  `json:"outlet_id,omitempty"`
}

// CreateUser adds a staff account to a merchant within the plan's users
// limit.
func (s *Service) CreateUser(ctx context.Context, merchantID uuid.UUID, in CreateUserInput) (*models.User, error) {
	if !in.Role.Valid() || in.Role == models.RoleAdmin {
		return nil, ErrInvalidRole
	}
	if in.Role.OutletScoped() && in.OutletID == nil {
		return nil, ErrOutletRequired
	}
	if !in.Role.OutletScoped() {
		in.OutletID = nil
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var created *models.User
	err = s.Enforcer.Guard(ctx, s.DB, merchantID, plan.CategoryUsers, func(tx pgx.Tx) error {
		created, err = insertUser(ctx, tx, &models.User{
			MerchantID:   &merchantID,
			OutletID:     in.OutletID,
			Email:        normalizeEmail(in.Email),
			FullName:     strings.TrimSpace(in.FullName),
			Role:         in.Role,
			PasswordHash: hash,
			Active:       true,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.Audit != nil {
		s.Audit.Record(ctx, audit.LogEntry{
			Action:       audit.ActionUserCreated,
			ResourceType: "user",
			ResourceID:   &created.ID,
			Details:      map[string]interface{}{"role": created.Role},
		})
	}
	return created, nil
}

func (s *Service) ListUsers(ctx context.Context, merchantID uuid.UUID) ([]models.User, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE merchant_id = $1 ORDER BY created_at`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetUserActive enables or disables an account of the merchant. actorID
// may not disable itself. Reactivation counts against the users limit.
func (s *Service) SetUserActive(ctx context.Context, merchantID, actorID, userID uuid.UUID, active bool) (*models.User, error) {
	if userID == actorID && !active {
		return nil, ErrSelfDeactivation
	}

	var u *models.User
	update := func(q database.DB) error {
		var err error
		u, err = scanUser(q.QueryRow(ctx,
			`UPDATE users SET active = $3 WHERE id = $1 AND merchant_id = $2
			 RETURNING `+userColumns, userID, merchantID, active))
		if err != nil {
			if database.IsNoRows(err) {
				return auth.ErrUserNotFound
			}
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	}

	var err error
	if active {
		err = s.Enforcer.Guard(ctx, s.DB, merchantID, plan.CategoryUsers, func(tx pgx.Tx) error {
			return update(tx)
		})
	} else {
		err = update(s.DB)
	}
	if err != nil {
		return nil, err
	}

	if s.Audit != nil {
		s.Audit.Record(ctx, audit.LogEntry{
			Action:       audit.ActionUserActiveChanged,
			ResourceType: "user",
			ResourceID:   &u.ID,
			Details:      map[string]interface{}{"active": active},
		})
	}
	return u, nil
}
