package merchant

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/auth"
	"github.com/nikhilbhutani/rentalshop/internal/database/dbtest"
	"github.com/nikhilbhutani/rentalshop/internal/models"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
	"github.com/nikhilbhutani/rentalshop/internal/subdomain"
	"github.com/nikhilbhutani/rentalshop/internal/subscription"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

type recordingProvisioner struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (p *recordingProvisioner) EnqueueTenantProvision(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return nil
}

func userRow(id, merchantID uuid.UUID, email string, role models.Role, hash string, active bool) []any {
	return []any{id, merchantID, nil, email, "Owner", string(role), hash, active, time.Now()}
}

func newTestService(db *dbtest.Fake, template string, prov Provisioner) *Service {
	subs := subscription.NewService(db, subscription.NewSettingsStore(db))
	return NewService(Deps{
		DB:            db,
		Tenants:       tenant.NewDirectory(db),
		Plans:         plan.NewService(db),
		Subscriptions: subs,
		Enforcer:      plan.NewEnforcer(subs, db),
		Issuer:        auth.NewIssuer("secret", "rentalshop", time.Hour),
		Audit:         audit.NewService(db),
		Provisioner:   prov,
		DSNTemplate:   template,
		DefaultPlan:   "starter",
	})
}

type registrationScript struct {
	tenantID uuid.UUID
	dsn      string
	// users overrides the owner insert.
	users dbtest.Handler
}

// registrationDB scripts the directory statements of a registration.
func registrationDB(t *testing.T, sc *registrationScript) *dbtest.Fake {
	sc.tenantID = uuid.New()
	users := sc.users
	if users == nil {
		users = func(_ string, args []any) dbtest.Result {
			assert.Equal(t, "MERCHANT", args[4])
			assert.NoError(t, auth.CheckPassword(args[5].(string), "correct-horse"))
			mid := args[0].(*uuid.UUID)
			return dbtest.Result{Rows: [][]any{userRow(uuid.New(), *mid, args[2].(string), models.RoleMerchant, args[5].(string), true)}}
		}
	}

	return dbtest.New().
		Return("SELECT EXISTS", dbtest.Single(false)).
		On("FROM plans", func(_ string, args []any) dbtest.Result {
			now := time.Now()
			return dbtest.Single(uuid.New(), args[0], "Starter", decimal.NewFromInt(19), "USD", 0, []byte(`{"outlets":1}`), true, now, now)
		}).
		Return("INSERT INTO merchants", dbtest.Single(uuid.New(), time.Now())).
		On("INSERT INTO tenants", func(_ string, args []any) dbtest.Result {
			sc.dsn = args[4].(string)
			return dbtest.Single(sc.tenantID, time.Now(), time.Now())
		}).
		On("INSERT INTO users", users).
		Return("FROM billing_settings", dbtest.Result{}).
		On("INSERT INTO subscriptions", func(_ string, args []any) dbtest.Result {
			now := time.Now()
			return dbtest.Single(uuid.New(), args[0], args[1], args[2], args[3], args[4], nil, nil, args[5], now, now)
		}).
		Return("UPDATE tenants SET subscription_id", dbtest.Affected(1)).
		Return("INSERT INTO audit_logs", dbtest.Affected(1))
}

func validInput() RegisterInput {
	return RegisterInput{
		BusinessName: "Best Rentals",
		Email:        "Owner@Best.Test",
		Password:     "correct-horse",
		FullName:     "Olive Owner",
	}
}

func TestRegisterSharedSchema(t *testing.T) {
	sc := &registrationScript{}
	db := registrationDB(t, sc)
	prov := &recordingProvisioner{}
	s := newTestService(db, "", prov)

	reg, err := s.Register(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "best-rentals", reg.Tenant.Subdomain)
	assert.Equal(t, sc.tenantID, reg.Tenant.ID)
	assert.Equal(t, models.TenantActive, reg.Tenant.Status)
	assert.Empty(t, sc.dsn)
	assert.Equal(t, "owner@best.test", reg.User.Email)
	assert.Equal(t, models.RoleMerchant, reg.User.Role)
	assert.Equal(t, models.SubscriptionTrialing, reg.Subscription.Status)
	require.NotNil(t, reg.Subscription.TrialEnd)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), *reg.Subscription.TrialEnd, time.Minute)
	assert.NotEmpty(t, reg.Token)
	assert.Empty(t, prov.ids, "shared-schema tenants need no provisioning")
	assert.Equal(t, 1, db.Commits)

	for _, c := range db.Calls() {
		for _, frag := range []string{"INSERT INTO merchants", "INSERT INTO tenants", "INSERT INTO users", "INSERT INTO subscriptions"} {
			if strings.Contains(c.SQL, frag) {
				assert.True(t, c.InTx, "must run in the registration tx: %s", frag)
			}
		}
	}

	claims, err := s.Issuer.Parse(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID.String(), claims.Subject)
}

func TestRegisterOwnDatabaseEnqueuesProvision(t *testing.T) {
	sc := &registrationScript{}
	db := registrationDB(t, sc)
	prov := &recordingProvisioner{}
	s := newTestService(db, "postgres://u:p@db:5432/rental_%s?sslmode=disable", prov)

	in := validInput()
	in.Subdomain = "Best-Rentals"
	_, err := s.Register(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{sc.tenantID}, prov.ids)
	assert.Equal(t, "postgres://u:p@db:5432/rental_best_rentals?sslmode=disable", sc.dsn)
}

func TestRegisterRejects(t *testing.T) {
	t.Run("taken subdomain", func(t *testing.T) {
		db := dbtest.New().Return("SELECT EXISTS", dbtest.Single(true))
		_, err := newTestService(db, "", nil).Register(context.Background(), validInput())
		assert.ErrorIs(t, err, ErrSubdomainTaken)
		assert.False(t, db.Called("INSERT"))
	})

	t.Run("reserved subdomain", func(t *testing.T) {
		in := validInput()
		in.Subdomain = "admin"
		_, err := newTestService(dbtest.New(), "", nil).Register(context.Background(), in)
		assert.ErrorIs(t, err, subdomain.ErrReserved)
	})

	t.Run("duplicate email rolls back", func(t *testing.T) {
		db := registrationDB(t, &registrationScript{
			users: func(string, []any) dbtest.Result {
				return dbtest.Fail(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
			},
		})
		_, err := newTestService(db, "", nil).Register(context.Background(), validInput())
		assert.ErrorIs(t, err, ErrEmailTaken)
		assert.Zero(t, db.Commits)
		assert.Equal(t, 1, db.Rollbacks)
		assert.False(t, db.Called("INSERT INTO subscriptions"))
	})
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	merchantID := uuid.New()
	userID := uuid.New()

	db := dbtest.New().
		On("FROM users", func(_ string, args []any) dbtest.Result {
			if args[0] != "owner@shop.test" {
				return dbtest.Result{}
			}
			return dbtest.Result{Rows: [][]any{userRow(userID, merchantID, "owner@shop.test", models.RoleMerchant, hash, true)}}
		}).
		Return("FROM tenants", dbtest.Single(uuid.New(), merchantID, "shop", "Shop", "active", "", nil, time.Now(), time.Now()))
	s := newTestService(db, "", nil)

	sess, err := s.Login(context.Background(), LoginInput{Email: " Owner@Shop.test", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, userID, sess.User.ID)
	require.NotNil(t, sess.Tenant)
	assert.Equal(t, "shop", sess.Tenant.Subdomain)

	_, err = s.Login(context.Background(), LoginInput{Email: "owner@shop.test", Password: "nope"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = s.Login(context.Background(), LoginInput{Email: "ghost@shop.test", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestCreateUser(t *testing.T) {
	merchantID := uuid.New()
	outletID := uuid.New()

	db := dbtest.New().
		Return("JOIN plans", dbtest.Single([]byte(`{"users": 3}`))).
		Return("pg_advisory_xact_lock", dbtest.Result{}).
		Return("count(*) FROM users", dbtest.Single(int64(1))).
		On("INSERT INTO users", func(_ string, args []any) dbtest.Result {
			assert.Equal(t, &outletID, args[1])
			assert.Equal(t, "OUTLET_STAFF", args[4])
			return dbtest.Result{Rows: [][]any{{uuid.New(), merchantID, outletID, "staff@shop.test", "Sam", "OUTLET_STAFF", args[5], true, time.Now()}}}
		}).
		Return("INSERT INTO audit_logs", dbtest.Affected(1))
	s := newTestService(db, "", nil)

	u, err := s.CreateUser(context.Background(), merchantID, CreateUserInput{
		Email: "staff@shop.test", Password: "password1", FullName: "Sam", Role: models.RoleOutletStaff, OutletID: &outletID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleOutletStaff, u.Role)
	require.NotNil(t, u.OutletID)
	assert.Equal(t, outletID, *u.OutletID)
}

func TestCreateUserAtLimit(t *testing.T) {
	db := dbtest.New().
		Return("JOIN plans", dbtest.Single([]byte(`{"users": 2}`))).
		Return("pg_advisory_xact_lock", dbtest.Result{}).
		Return("count(*) FROM users", dbtest.Single(int64(2)))
	s := newTestService(db, "", nil)

	_, err := s.CreateUser(context.Background(), uuid.New(), CreateUserInput{
		Email: "x@shop.test", Password: "password1", FullName: "X", Role: models.RoleMerchant,
	})
	var le *plan.LimitError
	require.ErrorAs(t, err, &le)
	assert.False(t, db.Called("INSERT INTO users"))
}

func TestCreateUserValidation(t *testing.T) {
	s := newTestService(dbtest.New(), "", nil)

	_, err := s.CreateUser(context.Background(), uuid.New(), CreateUserInput{Role: models.RoleAdmin})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = s.CreateUser(context.Background(), uuid.New(), CreateUserInput{Role: models.RoleOutletAdmin})
	assert.ErrorIs(t, err, ErrOutletRequired)
}

func TestSetUserActive(t *testing.T) {
	merchantID := uuid.New()
	actor := uuid.New()
	target := uuid.New()

	db := dbtest.New().On("UPDATE users", func(_ string, args []any) dbtest.Result {
		assert.Equal(t, []any{target, merchantID, false}, args)
		return dbtest.Result{Rows: [][]any{userRow(target, merchantID, "s@shop.test", models.RoleOutletStaff, "h", false)}}
	}).Return("INSERT INTO audit_logs", dbtest.Affected(1))
	s := newTestService(db, "", nil)

	u, err := s.SetUserActive(context.Background(), merchantID, actor, target, false)
	require.NoError(t, err)
	assert.False(t, u.Active)

	_, err = s.SetUserActive(context.Background(), merchantID, actor, actor, false)
	assert.ErrorIs(t, err, ErrSelfDeactivation)
}

func TestUserByIDMissing(t *testing.T) {
	s := newTestService(dbtest.New().Return("FROM users", dbtest.Result{}), "", nil)
	_, err := s.UserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}
