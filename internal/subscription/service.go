package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nikhilbhutani/rentalshop/internal/database"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

const subscriptionColumns = `id, merchant_id, plan_id, status, trial_start, trial_end,
	current_period_start, current_period_end, amount, created_at, updated_at`

// Service reads and transitions subscriptions in the directory store.
type Service struct {
	db       database.DB
	settings *SettingsStore
	now      func() time.Time
}

func NewService(db database.DB, settings *SettingsStore) *Service {
	return &Service{db: db, settings: settings, now: time.Now}
}

func scanSubscription(row pgx.Row) (*models.Subscription, error) {
	var s models.Subscription
	var status string
	if err := row.Scan(&s.ID, &s.MerchantID, &s.PlanID, &status, &s.TrialStart, &s.TrialEnd,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.Amount, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = models.SubscriptionStatus(status)
	return &s, nil
}

func one(row pgx.Row, op string) (*models.Subscription, error) {
	s, err := scanSubscription(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// Current returns the merchant's most recent subscription.
func (s *Service) Current(ctx context.Context, merchantID uuid.UUID) (*models.Subscription, error) {
	return one(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE merchant_id = $1 ORDER BY created_at DESC LIMIT 1`, merchantID,
	), "current subscription")
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	return one(s.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id,
	), "get subscription")
}

// Standing evaluates the merchant's current subscription now, allowing the
// configured grace days after a paid period ends.
func (s *Service) Standing(ctx context.Context, merchantID uuid.UUID) (Standing, *models.Subscription, error) {
	sub, err := s.Current(ctx, merchantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return StandingNone, nil, nil
		}
		return "", nil, err
	}
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return "", nil, err
	}
	grace := time.Duration(settings.GraceDays) * 24 * time.Hour
	return EvaluateWithGrace(sub, s.now(), grace), sub, nil
}

// StartTrial opens a trialing subscription on p through q, which is
// normally the registration transaction. The plan's trial length wins over
// the platform default when set.
func (s *Service) StartTrial(ctx context.Context, q database.DB, merchantID uuid.UUID, p *models.Plan) (*models.Subscription, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	days := settings.TrialDays
	if p.TrialDays > 0 {
		days = p.TrialDays
	}

	start := s.now().UTC()
	end := start.AddDate(0, 0, days)

	sub, err := one(q.QueryRow(ctx,
		`INSERT INTO subscriptions (merchant_id, plan_id, status, trial_start, trial_end, amount)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+subscriptionColumns,
		merchantID, p.ID, string(models.SubscriptionTrialing), start, end, p.Price,
	), "start trial")
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel cancels the merchant's live subscription.
func (s *Service) Cancel(ctx context.Context, merchantID uuid.UUID) (*models.Subscription, error) {
	current, err := s.Current(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.SubscriptionCancelled {
		return nil, ErrAlreadyCancelled
	}

	return one(s.db.QueryRow(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+subscriptionColumns,
		current.ID, string(models.SubscriptionCancelled),
	), "cancel subscription")
}

// Extend pushes the end of the running trial or period out by days,
// reactivating lapsed subscriptions. Extension counts from now when the
// end has already passed.
func (s *Service) Extend(ctx context.Context, id uuid.UUID, days int) (*models.Subscription, error) {
	if days <= 0 {
		return nil, ErrInvalidExtension
	}

	var out *models.Subscription
	err := database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		sub, err := one(tx.QueryRow(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR UPDATE`, id,
		), "lock subscription")
		if err != nil {
			return err
		}
		if sub.Status == models.SubscriptionCancelled {
			return ErrAlreadyCancelled
		}

		now := s.now().UTC()
		if sub.Status == models.SubscriptionTrialing {
			end := laterOf(now, sub.TrialEnd).AddDate(0, 0, days)
			out, err = one(tx.QueryRow(ctx,
				`UPDATE subscriptions SET trial_end = $2, updated_at = NOW()
				 WHERE id = $1 RETURNING `+subscriptionColumns, id, end,
			), "extend trial")
			return err
		}

		start := sub.CurrentPeriodStart
		if start == nil {
			start = &now
		}
		end := laterOf(now, sub.CurrentPeriodEnd).AddDate(0, 0, days)
		out, err = one(tx.QueryRow(ctx,
			`UPDATE subscriptions SET status = $2, current_period_start = $3, current_period_end = $4, updated_at = NOW()
			 WHERE id = $1 RETURNING `+subscriptionColumns,
			id, string(models.SubscriptionActive), *start, end,
		), "extend period")
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireTrials persists the expiry of every trial that ended at or before
// now and returns the affected subscriptions.
func (s *Service) ExpireTrials(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`UPDATE subscriptions SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND trial_end <= $3
		 RETURNING id`,
		string(models.SubscriptionExpired), string(models.SubscriptionTrialing), now,
	)
	if err != nil {
		return nil, fmt.Errorf("expire trials: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired trial: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ApplyPayment records a provider payment outcome. A success activates the
// subscription and advances the paid period by the billing interval; a
// failure marks it past due. Each event id is applied once: a redelivered
// event returns the subscription unchanged with applied false.
func (s *Service) ApplyPayment(ctx context.Context, ev *PaymentEvent) (*models.Subscription, bool, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, false, err
	}

	var (
		out     *models.Subscription
		applied bool
	)
	err = database.InTx(ctx, s.db, func(tx pgx.Tx) error {
		sub, err := one(tx.QueryRow(ctx,
			`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR UPDATE`, ev.SubscriptionID,
		), "lock subscription")
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO payment_events (event_id, subscription_id, type)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (event_id) DO NOTHING`,
			ev.ID, sub.ID, ev.Type,
		)
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			out = sub
			return nil
		}
		applied = true

		if sub.Status == models.SubscriptionCancelled {
			return ErrAlreadyCancelled
		}

		switch ev.Type {
		case EventPaymentSucceeded:
			start := laterOf(s.now().UTC(), sub.CurrentPeriodEnd)
			end := start.AddDate(0, 0, settings.IntervalDays)
			amount := sub.Amount
			if ev.Amount.IsPositive() {
				amount = ev.Amount
			}
			out, err = one(tx.QueryRow(ctx,
				`UPDATE subscriptions SET status = $2, current_period_start = $3, current_period_end = $4, amount = $5, updated_at = NOW()
				 WHERE id = $1 RETURNING `+subscriptionColumns,
				sub.ID, string(models.SubscriptionActive), start, end, amount,
			), "apply payment")
		case EventPaymentFailed:
			out, err = one(tx.QueryRow(ctx,
				`UPDATE subscriptions SET status = $2, updated_at = NOW()
				 WHERE id = $1 RETURNING `+subscriptionColumns,
				sub.ID, string(models.SubscriptionPastDue),
			), "apply payment failure")
		default:
			return fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if !applied {
		slog.Info("payment event already applied", "event_id", ev.ID, "subscription_id", out.ID)
		return out, false, nil
	}
	slog.Info("payment applied",
		"event_id", ev.ID,
		"type", ev.Type,
		"subscription_id", out.ID,
		"status", out.Status,
	)
	return out, true, nil
}

// LimitsForMerchant returns the limits of the plan behind the merchant's
// most recent subscription that is not cancelled.
func (s *Service) LimitsForMerchant(ctx context.Context, merchantID uuid.UUID) (map[string]int64, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT p.limits FROM subscriptions s
		 JOIN plans p ON p.id = s.plan_id
		 WHERE s.merchant_id = $1 AND s.status <> 'cancelled'
		 ORDER BY s.created_at DESC LIMIT 1`, merchantID,
	).Scan(&raw)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, ErrInactive
		}
		return nil, fmt.Errorf("load plan limits: %w", err)
	}

	limits := map[string]int64{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &limits); err != nil {
			return nil, fmt.Errorf("decode plan limits: %w", err)
		}
	}
	return limits, nil
}

func laterOf(now time.Time, t *time.Time) time.Time {
	if t != nil && t.After(now) {
		return *t
	}
	return now
}
