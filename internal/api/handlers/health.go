package handlers

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolCounter reports how many tenant pools are open.
type PoolCounter interface {
	Len() int
}

type HealthHandler struct {
	db    Pinger
	redis redis.UniversalClient
	pools PoolCounter
}

func NewHealthHandler(db Pinger, rdb redis.UniversalClient, pools PoolCounter) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, pools: pools}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httpapi.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	body := map[string]interface{}{"status": statusStr(status), "checks": checks}
	if h.pools != nil {
		body["tenant_pools"] = h.pools.Len()
	}
	httpapi.JSON(w, status, body)
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
