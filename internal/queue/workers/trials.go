package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/rentalshop/internal/audit"
)

// TrialExpirer persists lapsed trials.
type TrialExpirer interface {
	ExpireTrials(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type TrialSweepWorker struct {
	subs  TrialExpirer
	audit *audit.Service
	now   func() time.Time
}

func NewTrialSweepWorker(subs TrialExpirer, auditSvc *audit.Service) *TrialSweepWorker {
	return &TrialSweepWorker{subs: subs, audit: auditSvc, now: time.Now}
}

func (w *TrialSweepWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	ids, err := w.subs.ExpireTrials(ctx, w.now())
	if err != nil {
		return fmt.Errorf("expire trials: %w", err)
	}

	slog.Info("trial sweep finished", "expired", len(ids))
	if len(ids) > 0 && w.audit != nil {
		w.audit.Record(ctx, audit.LogEntry{
			Action:       audit.ActionTrialsExpired,
			ResourceType: "subscription",
			Details:      map[string]interface{}{"subscription_ids": ids},
		})
	}
	return nil
}
