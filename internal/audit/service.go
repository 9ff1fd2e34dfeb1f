package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

const (
	ActionMerchantRegistered    = "merchant.registered"
	ActionTenantStatusChanged   = "tenant.status_changed"
	ActionTenantProvisionQueued = "tenant.provision_queued"
	ActionSubscriptionCancelled = "subscription.cancelled"
	ActionSubscriptionExtended  = "subscription.extended"
	ActionPaymentApplied        = "subscription.payment_applied"
	ActionTrialsExpired         = "subscription.trials_expired"
	ActionSettingsChanged       = "billing.settings_changed"
	ActionPlanSaved             = "plan.saved"
	ActionUserCreated           = "user.created"
	ActionUserActiveChanged     = "user.active_changed"
)

type Service struct {
	db database.DB
}

func NewService(db database.DB) *Service {
	return &Service{db: db}
}

type LogEntry struct {
	// TenantID overrides the tenant found on the context.
	TenantID     *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
}

func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	tenantID := entry.TenantID
	if tenantID == nil {
		if id := tenant.IDFromContext(ctx); id != uuid.Nil {
			tenantID = &id
		}
	}

	var userID *uuid.UUID
	if user := tenant.UserFromContext(ctx); user != nil {
		userID = &user.ID
	}

	details, _ := json.Marshal(entry.Details)

	var ip *netip.Addr
	if entry.IPAddress != "" {
		if addrPort, err := netip.ParseAddrPort(entry.IPAddress); err == nil {
			a := addrPort.Addr()
			ip = &a
		} else if parsed, err := netip.ParseAddr(entry.IPAddress); err == nil {
			ip = &parsed
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (tenant_id, user_id, action, resource_type, resource_id, details, ip_address)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tenantID, userID, entry.Action, entry.ResourceType, entry.ResourceID, details, ip,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	return nil
}

// Record logs entry and reports failures to slog instead of the caller.
// A nil Service records nothing.
func (s *Service) Record(ctx context.Context, entry LogEntry) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, entry); err != nil {
		slog.Warn("audit log failed", "action", entry.Action, "error", err)
	}
}

type Query struct {
	TenantID  *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Action    string
	Limit     int
	Offset    int
}

func (s *Service) List(ctx context.Context, q Query) ([]models.AuditLog, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	query := `SELECT id, tenant_id, user_id, action, resource_type, resource_id, details, ip_address, created_at
			  FROM audit_logs WHERE TRUE`
	args := []interface{}{}
	argIdx := 1

	if q.TenantID != nil {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, *q.TenantID)
		argIdx++
	}
	if q.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, q.Action)
		argIdx++
	}
	if q.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.StartDate)
		argIdx++
	}
	if q.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *q.EndDate)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var l models.AuditLog
		var details []byte
		if err := rows.Scan(&l.ID, &l.TenantID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.Details = details
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
