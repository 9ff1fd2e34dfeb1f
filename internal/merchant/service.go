// Package merchant onboards merchants and manages their user accounts.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/auth"
	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
	"github.com/nikhilbhutani/rentalshop/internal/subdomain"
	"github.com/nikhilbhutani/rentalshop/internal/subscription"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

// Provisioner schedules creation of a tenant's own database.
type Provisioner interface {
	EnqueueTenantProvision(ctx context.Context, tenantID uuid.UUID) error
}

type Deps struct {
	DB            database.DB
	Tenants       *tenant.Directory
	Plans         *plan.Service
	Subscriptions *subscription.Service
	Enforcer      *plan.Enforcer
	Issuer        *auth.Issuer
	Audit         *audit.Service
	Provisioner   Provisioner
	// DSNTemplate holds %s for the tenant database name. Empty keeps every
	// tenant in the shared schema.
	DSNTemplate string
	DefaultPlan string
}

type Service struct {
	Deps
}

func NewService(deps Deps) *Service {
	return &Service{Deps: deps}
}

type RegisterInput struct {
	BusinessName string `json:"business_name" validate:"required,max=200"`
	Subdomain    string `json:"subdomain,omitempty" validate:"omitempty,max=63"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	FullName     string `json:"full_name" validate:"required,max=200"`
	Phone        string `json:"phone,omitempty" validate:"max=50"`
	BusinessType string `json:"business_type,omitempty" validate:"max=100"`
	Address      string `json:"address,omitempty" validate:"max=500"`
	PlanCode     string `json:"plan_code,omitempty" validate:"max=50"`
}

type Registration struct {
	Merchant     *models.Merchant     `json:"merchant"`
	Tenant       models.TenantInfo    `json:"tenant"`
	User         *models.User         `json:"user"`
	Subscription *models.Subscription `json:"subscription"`
	Token        string               `json:"token"`
	ExpiresAt    time.Time            `json:"expires_at"`
}

// TenantDatabaseName maps a subdomain to a database identifier.
func TenantDatabaseName(sub string) string {
	return strings.ReplaceAll(sub, "-", "_")
}

func (s *Service) descriptorFor(sub string) string {
	if s.DSNTemplate == "" {
		return ""
	}
	return strings.ReplaceAll(s.DSNTemplate, "%s", TenantDatabaseName(sub))
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Register creates the merchant, its tenant, the owner account and a trial
// subscription in one transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	sub := strings.ToLower(strings.TrimSpace(in.Subdomain))
	if sub == "" {
		sub = subdomain.Sanitize(in.BusinessName)
	}
	if err := subdomain.Validate(sub); err != nil {
		return nil, err
	}

	taken, err := s.Tenants.SubdomainTaken(ctx, sub)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSubdomainTaken
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	planCode := in.PlanCode
	if planCode == "" {
		planCode = s.DefaultPlan
	}

	reg := &Registration{}
	t := &models.Tenant{
		Subdomain:   sub,
		Name:        strings.TrimSpace(in.BusinessName),
		Status:      models.TenantActive,
		DatabaseURL: s.descriptorFor(sub),
	}

	err = database.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		p, err := s.Plans.GetByCodeTx(ctx, tx, planCode)
		if err != nil {
			return err
		}
		if !p.Active {
			return ErrPlanUnavailable
		}

		m := &models.Merchant{
			Name:         t.Name,
			Email:        normalizeEmail(in.Email),
			Phone:        in.Phone,
			BusinessType: in.BusinessType,
			Address:      in.Address,
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO merchants (name, email, phone, business_type, address)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			m.Name, m.Email, m.Phone, m.BusinessType, m.Address,
		).Scan(&m.ID, &m.CreatedAt); err != nil {
			return fmt.Errorf("insert merchant: %w", err)
		}

		t.MerchantID = m.ID
		if err := s.Tenants.Create(ctx, tx, t); err != nil {
			if database.IsUniqueViolation(err, "") {
				return ErrSubdomainTaken
			}
			return err
		}

		u, err := insertUser(ctx, tx, &models.User{
			MerchantID:   &m.ID,
			Email:        m.Email,
			FullName:     strings.TrimSpace(in.FullName),
			Role:         models.RoleMerchant,
			PasswordHash: hash,
			Active:       true,
		})
		if err != nil {
			return err
		}

		trial, err := s.Subscriptions.StartTrial(ctx, tx, m.ID, p)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE tenants SET subscription_id = $2 WHERE id = $1`, t.ID, trial.ID,
		); err != nil {
			return fmt.Errorf("link subscription: %w", err)
		}
		t.SubscriptionID = &trial.ID

		reg.Merchant = m
		reg.User = u
		reg.Subscription = trial
		return nil
	})
	if err != nil {
		return nil, err
	}
	reg.Tenant = t.Info()

	if t.DatabaseURL != "" && s.Provisioner != nil {
		if err := s.Provisioner.EnqueueTenantProvision(ctx, t.ID); err != nil {
			slog.Error("enqueue tenant provision failed", "tenant_id", t.ID, "error", err)
		}
	}

	if s.Audit != nil {
		s.Audit.Record(ctx, audit.LogEntry{
			TenantID:     &t.ID,
			Action:       audit.ActionMerchantRegistered,
			ResourceType: "merchant",
			ResourceID:   &reg.Merchant.ID,
			Details:      map[string]interface{}{"subdomain": sub, "plan": planCode},
		})
	}

	slog.Info("merchant registered", "merchant_id", reg.Merchant.ID, "subdomain", sub)

	reg.Token, reg.ExpiresAt, err = s.Issuer.Issue(reg.User)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

type Session struct {
	User      *models.User       `json:"user"`
	Tenant    *models.TenantInfo `json:"tenant,omitempty"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords fail identically.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	u, err := s.userByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(u.PasswordHash, in.Password); err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	sess := &Session{User: u}
	if u.MerchantID != nil {
		t, err := s.Tenants.GetByMerchant(ctx, *u.MerchantID)
		if err != nil {
			return nil, err
		}
		info := t.Info()
		sess.Tenant = &info
	}

	sess.Token, sess.ExpiresAt, err = s.Issuer.Issue(u)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
