package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/rentalshop/internal/api/handlers"
	"github.com/nikhilbhutani/rentalshop/internal/api/middleware"
	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/audit"
	"github.com/nikhilbhutani/rentalshop/internal/auth"
	"github.com/nikhilbhutani/rentalshop/internal/cache"
	"github.com/nikhilbhutani/rentalshop/internal/config"
	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
	"github.com/nikhilbhutani/rentalshop/internal/merchant"
	"github.com/nikhilbhutani/rentalshop/internal/plan"
	"github.com/nikhilbhutani/rentalshop/internal/rental"
	"github.com/nikhilbhutani/rentalshop/internal/subscription"
	"github.com/nikhilbhutani/rentalshop/internal/tenant"
)

// Jobs queues background work on behalf of requests.
type Jobs interface {
	merchant.Provisioner
	handlers.AdminJobs
}

// Services is the wired application layer behind the HTTP surface.
type Services struct {
	Tenants       *tenant.Directory
	Resolver      *tenant.CachedResolver
	Connector     *tenant.Connector
	Issuer        *auth.Issuer
	Plans         *plan.Service
	Enforcer      *plan.Enforcer
	Subscriptions *subscription.Service
	Settings      *subscription.SettingsStore
	Merchants     *merchant.Service
	Rental        *rental.Service
	Audit         *audit.Service
	Jobs          Jobs
}

// NewServices builds every service over the directory store db.
func NewServices(cfg *config.Config, db database.DB, rdb redis.UniversalClient, connector *tenant.Connector, jobs Jobs) *Services {
	directory := tenant.NewDirectory(db)
	settings := subscription.NewSettingsStore(db)
	subs := subscription.NewService(db, settings)
	plans := plan.NewService(db)
	enforcer := plan.NewEnforcer(subs, db)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	auditSvc := audit.NewService(db)

	return &Services{
		Tenants:       directory,
		Resolver:      tenant.NewCachedResolver(directory, cache.NewCache(rdb, "rentalshop:"), cfg.Tenancy.ResolverCacheTTL),
		Connector:     connector,
		Issuer:        issuer,
		Plans:         plans,
		Enforcer:      enforcer,
		Subscriptions: subs,
		Settings:      settings,
		Merchants: merchant.NewService(merchant.Deps{
			DB:            db,
			Tenants:       directory,
			Plans:         plans,
			Subscriptions: subs,
			Enforcer:      enforcer,
			Issuer:        issuer,
			Audit:         auditSvc,
			Provisioner:   jobs,
			DSNTemplate:   cfg.Database.TenantDSNTemplate,
			DefaultPlan:   cfg.Tenancy.DefaultPlanCode,
		}),
		Rental: rental.NewService(enforcer),
		Audit:  auditSvc,
		Jobs:   jobs,
	}
}

type Router struct {
	mux   *chi.Mux
	cfg   *config.Config
	svc   *Services
	db    handlers.Pinger
	redis redis.UniversalClient
	rl    *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, svc *Services, db handlers.Pinger, rdb redis.UniversalClient) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		cfg:   cfg,
		svc:   svc,
		db:    db,
		redis: rdb,
		rl:    middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
}

// Close stops background work started by the router.
func (rt *Router) Close() {
	rt.rl.Stop()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	svc := rt.svc

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORS.Origins))
	r.Use(rt.rl.Limit)
	r.Use(httpapi.Debug(!rt.cfg.IsProduction()))
	r.Use(middleware.TenantFromHost(rt.cfg.Tenancy.RootDomain))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpapi.Error(w, r, apperr.NotFound("route not found"))
	})

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis, svc.Connector)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	authn := auth.NewAuthenticator(svc.Issuer, svc.Merchants).Authenticate
	tenancy := middleware.NewTenancy(svc.Resolver, svc.Tenants, svc.Connector)
	requireSub := middleware.RequireSubscription(svc.Subscriptions)

	authH := handlers.NewAuthHandler(svc.Merchants)
	tenantH := handlers.NewTenantHandler()
	planH := handlers.NewPlanHandler(svc.Plans, svc.Audit)
	subH := handlers.NewSubscriptionHandler(svc.Subscriptions, svc.Enforcer, svc.Audit)
	billingH := handlers.NewBillingHandler(svc.Subscriptions, svc.Settings, svc.Audit, rt.cfg.Billing.WebhookSecret)
	rentalH := handlers.NewRentalHandler(svc.Rental)
	userH := handlers.NewUserHandler(svc.Merchants, svc.Rental, svc.Audit)
	adminH := handlers.NewAdminHandler(svc.Tenants, svc.Resolver, svc.Connector, svc.Jobs, svc.Audit)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.With(tenancy.Public).Get("/tenant/info", tenantH.Info)
		r.Get("/plans", planH.List)
		r.Get("/plans/{id}", planH.Get)
		r.Post("/billing/webhook", billingH.Webhook)

		r.With(authn).Get("/auth/me", authH.Me)

		// Tenant scoped. The capability check runs before the tenant is
		// resolved so rejected callers never touch its store.
		r.Group(func(r chi.Router) {
			r.Use(authn)

			scoped := func(r chi.Router, c auth.Capability) chi.Router {
				return r.With(auth.Require(c), tenancy.Scoped)
			}
			gated := func(r chi.Router, c auth.Capability) chi.Router {
				return r.With(auth.Require(c), tenancy.Scoped, requireSub)
			}

			scoped(r, auth.CapSubscriptionRead).Get("/subscription", subH.Current)
			scoped(r, auth.CapSubscriptionRead).Get("/subscription/usage", subH.Usage)
			scoped(r, auth.CapSubscriptionManage).Post("/subscription/cancel", subH.Cancel)

			r.Route("/outlets", func(r chi.Router) {
				gated(r, auth.CapOutletsRead).Get("/", rentalH.ListOutlets)
				gated(r, auth.CapOutletsRead).Get("/{id}", rentalH.GetOutlet)
				gated(r, auth.CapOutletsWrite).Post("/", rentalH.CreateOutlet)
				gated(r, auth.CapOutletsWrite).Put("/{id}", rentalH.UpdateOutlet)
				gated(r, auth.CapOutletsWrite).Delete("/{id}", rentalH.DeleteOutlet)
			})

			r.Route("/products", func(r chi.Router) {
				gated(r, auth.CapProductsRead).Get("/", rentalH.ListProducts)
				gated(r, auth.CapProductsRead).Get("/{id}", rentalH.GetProduct)
				gated(r, auth.CapProductsWrite).Post("/", rentalH.CreateProduct)
				gated(r, auth.CapProductsWrite).Put("/{id}", rentalH.UpdateProduct)
				gated(r, auth.CapProductsWrite).Delete("/{id}", rentalH.DeleteProduct)
			})

			r.Route("/customers", func(r chi.Router) {
				gated(r, auth.CapCustomersRead).Get("/", rentalH.ListCustomers)
				gated(r, auth.CapCustomersRead).Get("/{id}", rentalH.GetCustomer)
				gated(r, auth.CapCustomersWrite).Post("/", rentalH.CreateCustomer)
				gated(r, auth.CapCustomersWrite).Put("/{id}", rentalH.UpdateCustomer)
			})

			r.Route("/orders", func(r chi.Router) {
				gated(r, auth.CapOrdersRead).Get("/", rentalH.ListOrders)
				gated(r, auth.CapOrdersRead).Get("/{id}", rentalH.GetOrder)
				gated(r, auth.CapOrdersWrite).Post("/", rentalH.CreateOrder)
				gated(r, auth.CapOrdersWrite).Patch("/{id}/status", rentalH.SetOrderStatus)
			})

			r.Route("/users", func(r chi.Router) {
				users := gated(r, auth.CapUsersManage)
				users.Get("/", userH.List)
				users.Post("/", userH.Create)
				users.Patch("/{id}/active", userH.SetActive)
			})
		})

		// Platform administration
		r.Route("/admin", func(r chi.Router) {
			r.Use(authn)

			r.Route("/plans", func(r chi.Router) {
				r.Use(auth.Require(auth.CapPlansManage))
				r.Get("/", planH.ListAll)
				r.Post("/", planH.Create)
				r.Put("/{id}", planH.Update)
			})
			r.With(auth.Require(auth.CapPlansManage)).Get("/plan-variants", adminH.PlanVariants)

			r.With(auth.Require(auth.CapTenantsManage)).Get("/tenants", adminH.Tenants)
			r.With(auth.Require(auth.CapTenantsManage)).Patch("/tenants/{id}/status", adminH.SetTenantStatus)
			r.With(auth.Require(auth.CapTenantsManage)).Post("/tenants/{id}/provision", adminH.Provision)

			r.With(auth.Require(auth.CapBillingManage)).Post("/subscriptions/{id}/extend", subH.Extend)
			r.With(auth.Require(auth.CapBillingManage)).Post("/subscriptions/expire-trials", adminH.ExpireTrials)
			r.With(auth.Require(auth.CapBillingManage)).Get("/billing-settings", billingH.GetSettings)
			r.With(auth.Require(auth.CapBillingManage)).Put("/billing-settings", billingH.PutSettings)

			r.With(auth.Require(auth.CapAuditRead)).Get("/audit", adminH.AuditLogs)
		})
	})

	return r
}
