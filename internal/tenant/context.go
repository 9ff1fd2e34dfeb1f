package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

type contextKey string

const (
	tenantKey    contextKey = "tenant"
	userKey      contextKey = "user"
	scopeKey     contextKey = "scope"
	dbKey        contextKey = "tenant_db"
	subdomainKey contextKey = "subdomain"
)

// Scope constrains data access for the acting user. MerchantID is uuid.Nil
// for platform admins; OutletID is set for outlet-scoped roles.
type Scope struct {
	UserID     uuid.UUID
	Role       models.Role
	MerchantID uuid.UUID
	OutletID   *uuid.UUID
}

func (s Scope) IsAdmin() bool {
	return s.Role == models.RoleAdmin
}

// OutletFilter returns the outlet the scope is confined to, or nil.
func (s Scope) OutletFilter() *uuid.UUID {
	if s.Role.OutletScoped() {
		return s.OutletID
	}
	return nil
}

func WithTenant(ctx context.Context, t *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

func FromContext(ctx context.Context) *models.Tenant {
	t, _ := ctx.Value(tenantKey).(*models.Tenant)
	return t
}

func IDFromContext(ctx context.Context) uuid.UUID {
	if t := FromContext(ctx); t != nil {
		return t.ID
	}
	return uuid.Nil
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey).(Scope)
	return s, ok
}

// WithDB stores the handle of the resolved tenant's data store.
func WithDB(ctx context.Context, db database.DB) context.Context {
	return context.WithValue(ctx, dbKey, db)
}

func DBFromContext(ctx context.Context) database.DB {
	db, _ := ctx.Value(dbKey).(database.DB)
	return db
}

func WithSubdomain(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subdomainKey, sub)
}

func SubdomainFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subdomainKey).(string)
	return s
}
