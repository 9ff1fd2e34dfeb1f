package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

const CodeInvalidToken = "INVALID_TOKEN"

var ErrUserNotFound = errors.New("user not found")

func init() {
	apperr.Register(ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	apperr.Register(ErrInvalidToken, http.StatusUnauthorized, CodeInvalidToken)
	apperr.Register(ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND")
}

// UserLoader fetches the account behind a token subject.
type UserLoader interface {
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Authenticator struct {
	issuer *Issuer
	users  UserLoader
}

func NewAuthenticator(issuer *Issuer, users UserLoader) *Authenticator {
	return &Authenticator{issuer: issuer, users: users}
}

// Authenticate verifies the bearer token, loads the user and stores the
// caller's scope on the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			httpapi.Error(w, r, apperr.Unauthorized("", "missing authorization token"))
			return
		}

		claims, err := a.issuer.Parse(tokenStr)
		if err != nil {
			httpapi.Error(w, r, apperr.Unauthorized(CodeInvalidToken, "invalid or expired token"))
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			httpapi.Error(w, r, apperr.Unauthorized(CodeInvalidToken, "invalid user ID in token"))
			return
		}

		ctx := r.Context()

		user, err := a.users.UserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				httpapi.Error(w, r, apperr.Unauthorized("", "user not found"))
				return
			}
			httpapi.Error(w, r, err)
			return
		}
		if !user.Active {
			httpapi.Error(w, r, apperr.Unauthorized("", "account is disabled"))
			return
		}

		ctx = tenant.WithUser(ctx, user)
		ctx = tenant.WithScope(ctx, ScopeFor(user))
		ctx = context.WithValue(ctx, claimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ScopeFor derives the data-access scope of a user from the stored record,
// never from token claims.
func ScopeFor(u *models.User) tenant.Scope {
	s := tenant.Scope{UserID: u.ID, Role: u.Role, OutletID: u.OutletID}
	if u.MerchantID != nil {
		s.MerchantID = *u.MerchantID
	}
	return s
}

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
