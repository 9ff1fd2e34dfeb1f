package subscription

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/database/dbtest"
	"github.com/nikhilbhutani/rentalshop/internal/models"
)

func ptr(t time.Time) *time.Time { return &t }

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		sub  *models.Subscription
		want Standing
	}{
		{"no subscription", nil, StandingNone},
		{"trial running", &models.Subscription{Status: models.SubscriptionTrialing, TrialEnd: ptr(future)}, StandingActive},
		{"trial lapsed", &models.Subscription{Status: models.SubscriptionTrialing, TrialEnd: ptr(past)}, StandingExpired},
		{"trial ends exactly now", &models.Subscription{Status: models.SubscriptionTrialing, TrialEnd: ptr(now)}, StandingExpired},
		{"trial without end", &models.Subscription{Status: models.SubscriptionTrialing}, StandingExpired},
		{"cancelled with future trial", &models.Subscription{Status: models.SubscriptionCancelled, TrialEnd: ptr(future)}, StandingCancelled},
		{"paid period running", &models.Subscription{Status: models.SubscriptionActive, CurrentPeriodEnd: ptr(future)}, StandingActive},
		{"paid period lapsed", &models.Subscription{Status: models.SubscriptionActive, CurrentPeriodEnd: ptr(past)}, StandingPastDue},
		{"active without period", &models.Subscription{Status: models.SubscriptionActive}, StandingActive},
		{"paid after trial lapsed", &models.Subscription{Status: models.SubscriptionActive, TrialEnd: ptr(past), CurrentPeriodEnd: ptr(future)}, StandingActive},
		{"past due after trial lapsed", &models.Subscription{Status: models.SubscriptionPastDue, TrialEnd: ptr(past)}, StandingPastDue},
		{"past due", &models.Subscription{Status: models.SubscriptionPastDue, CurrentPeriodEnd: ptr(future)}, StandingPastDue},
		{"expired", &models.Subscription{Status: models.SubscriptionExpired}, StandingExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.sub, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == StandingActive, got.Entitled())
		})
	}
}

func TestWebhookSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment.succeeded","subscription_id":"` + uuid.NewString() + `","amount":"29.00"}`)
	sig := Sign(body, "whsec")

	ev, err := ParseEvent(body, "whsec", sig)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, ev.Type)
	assert.True(t, ev.Amount.Equal(decimal.RequireFromString("29")))

	_, err = ParseEvent(body, "whsec", Sign(body, "other"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = ParseEvent(body, "whsec", "")
	assert.ErrorIs(t, err, ErrInvalidSignature)
	_, err = ParseEvent(body, "", sig)
	assert.ErrorIs(t, err, ErrInvalidSignature, "an unset secret rejects everything")

	refund := []byte(`{"id":"evt_2","type":"payment.refunded"}`)
	_, err = ParseEvent(refund, "whsec", Sign(refund, "whsec"))
	assert.ErrorIs(t, err, ErrUnknownEventType)

	missing := []byte(`{"id":"evt_3","type":"payment.failed"}`)
	_, err = ParseEvent(missing, "whsec", Sign(missing, "whsec"))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.From(err).Status)
}

func TestSettingsLoadDefaultsAndSave(t *testing.T) {
	db := dbtest.New().Return("FROM billing_settings", dbtest.Result{})
	store := NewSettingsStore(db)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBillingSettings(), got)

	saved := time.Now()
	db.On("INSERT INTO billing_settings", func(_ string, args []any) dbtest.Result {
		assert.Equal(t, []any{45, 7, 2, "EUR"}, args)
		return dbtest.Single(saved)
	})
	out, err := store.Save(context.Background(), models.BillingSettings{IntervalDays: 45, TrialDays: 7, GraceDays: 2, Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", out.Currency)
	assert.Equal(t, saved, out.UpdatedAt)

	_, err = store.Save(context.Background(), models.BillingSettings{IntervalDays: 0, Currency: "USD"})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func subRow(id uuid.UUID, status models.SubscriptionStatus, trialEnd, periodEnd *time.Time) []any {
	now := time.Now()
	var te, pe any
	if trialEnd != nil {
		te = *trialEnd
	}
	if periodEnd != nil {
		pe = *periodEnd
	}
	return []any{id, uuid.New(), uuid.New(), string(status), nil, te, nil, pe, decimal.NewFromInt(29), now, now}
}

func newService(db *dbtest.Fake, now time.Time) *Service {
	db.Return("FROM billing_settings", dbtest.Result{})
	s := NewService(db, NewSettingsStore(db))
	s.now = func() time.Time { return now }
	return s
}

func TestStartTrialUsesPlanTrialDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tx := dbtest.New().On("INSERT INTO subscriptions", func(_ string, args []any) dbtest.Result {
		assert.Equal(t, "trialing", args[2])
		assert.Equal(t, now.AddDate(0, 0, 7), args[4])
		end := args[4].(time.Time)
		return dbtest.Result{Rows: [][]any{subRow(uuid.New(), models.SubscriptionTrialing, &end, nil)}}
	})
	s := newService(dbtest.New(), now)

	sub, err := s.StartTrial(context.Background(), tx, uuid.New(), &models.Plan{ID: uuid.New(), TrialDays: 7})
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionTrialing, sub.Status)
}

func TestStartTrialFallsBackToPlatformTrial(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tx := dbtest.New().On("INSERT INTO subscriptions", func(_ string, args []any) dbtest.Result {
		assert.Equal(t, now.AddDate(0, 0, 14), args[4])
		return dbtest.Result{Rows: [][]any{subRow(uuid.New(), models.SubscriptionTrialing, nil, nil)}}
	})

	_, err := newService(dbtest.New(), now).StartTrial(context.Background(), tx, uuid.New(), &models.Plan{ID: uuid.New()})
	require.NoError(t, err)
}

func TestExpireTrials(t *testing.T) {
	now := time.Now()
	db := dbtest.New().On("UPDATE subscriptions", func(sql string, args []any) dbtest.Result {
		assert.Contains(t, sql, "trial_end <= $3")
		assert.Equal(t, []any{"expired", "trialing", now}, args)
		return dbtest.Result{Rows: [][]any{{uuid.New()}, {uuid.New()}, {uuid.New()}}}
	})

	ids, err := newService(db, now).ExpireTrials(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestApplyPaymentAdvancesPeriod(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	paidUntil := now.AddDate(0, 0, 10)

	db := dbtest.New().
		Return("FOR UPDATE", dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionActive, nil, &paidUntil)}}).
		Return("INSERT INTO payment_events", dbtest.Affected(1)).
		On("UPDATE subscriptions", func(_ string, args []any) dbtest.Result {
			assert.Equal(t, "active", args[1])
			assert.Equal(t, paidUntil, args[2], "renewal starts where the paid period ends")
			assert.Equal(t, paidUntil.AddDate(0, 0, 30), args[3])
			assert.True(t, decimal.RequireFromString("49.00").Equal(args[4].(decimal.Decimal)))
			end := args[3].(time.Time)
			return dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionActive, nil, &end)}}
		})
	s := newService(db, now)

	sub, applied, err := s.ApplyPayment(context.Background(), &PaymentEvent{ID: "evt", Type: EventPaymentSucceeded, SubscriptionID: id, Amount: decimal.RequireFromString("49.00")})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, 1, db.Commits)
}

func TestApplyPaymentRedeliveryIsIgnored(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	periodEnd := now.AddDate(0, 0, 10)
	seen := map[string]bool{}
	updates := 0

	db := dbtest.New().
		On("FOR UPDATE", func(string, []any) dbtest.Result {
			return dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionActive, nil, &periodEnd)}}
		}).
		On("INSERT INTO payment_events", func(_ string, args []any) dbtest.Result {
			eventID := args[0].(string)
			if seen[eventID] {
				return dbtest.Affected(0)
			}
			seen[eventID] = true
			return dbtest.Affected(1)
		}).
		On("UPDATE subscriptions", func(_ string, args []any) dbtest.Result {
			updates++
			periodEnd = args[3].(time.Time)
			return dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionActive, nil, &periodEnd)}}
		})
	s := newService(db, now)
	ev := &PaymentEvent{ID: "evt_42", Type: EventPaymentSucceeded, SubscriptionID: id}

	first, applied, err := s.ApplyPayment(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, applied)
	advanced := *first.CurrentPeriodEnd

	second, applied, err := s.ApplyPayment(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, advanced, *second.CurrentPeriodEnd, "a replayed event must not extend the period again")
	assert.Equal(t, 1, updates)
	assert.Equal(t, 2, db.Commits)
}

func TestApplyPaymentFailureMarksPastDue(t *testing.T) {
	id := uuid.New()
	db := dbtest.New().
		Return("FOR UPDATE", dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionActive, nil, nil)}}).
		Return("INSERT INTO payment_events", dbtest.Affected(1)).
		On("UPDATE subscriptions", func(_ string, args []any) dbtest.Result {
			assert.Equal(t, "past_due", args[1])
			return dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionPastDue, nil, nil)}}
		})

	sub, _, err := newService(db, time.Now()).ApplyPayment(context.Background(), &PaymentEvent{ID: "evt", Type: EventPaymentFailed, SubscriptionID: id})
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPastDue, sub.Status)
}

func TestExtend(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	id := uuid.New()
	lapsed := now.AddDate(0, 0, -3)

	db := dbtest.New().
		Return("FOR UPDATE", dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionTrialing, &lapsed, nil)}}).
		On("SET trial_end", func(_ string, args []any) dbtest.Result {
			assert.Equal(t, now.AddDate(0, 0, 5), args[1], "lapsed trials extend from now")
			end := args[1].(time.Time)
			return dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionTrialing, &end, nil)}}
		})
	s := newService(db, now)

	sub, err := s.Extend(context.Background(), id, 5)
	require.NoError(t, err)
	assert.Equal(t, StandingActive, Evaluate(sub, now))

	_, err = s.Extend(context.Background(), id, 0)
	assert.ErrorIs(t, err, ErrInvalidExtension)
}

func TestExtendCancelled(t *testing.T) {
	db := dbtest.New().Return("FOR UPDATE", dbtest.Result{Rows: [][]any{subRow(uuid.New(), models.SubscriptionCancelled, nil, nil)}})
	_, err := newService(db, time.Now()).Extend(context.Background(), uuid.New(), 5)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Zero(t, db.Commits)
}

func TestCancel(t *testing.T) {
	id := uuid.New()
	db := dbtest.New().
		Return("ORDER BY created_at DESC", dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionTrialing, nil, nil)}}).
		On("UPDATE subscriptions", func(_ string, args []any) dbtest.Result {
			assert.Equal(t, []any{id, "cancelled"}, args)
			return dbtest.Result{Rows: [][]any{subRow(id, models.SubscriptionCancelled, nil, nil)}}
		})

	sub, err := newService(db, time.Now()).Cancel(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCancelled, sub.Status)
}

func TestLimitsForMerchant(t *testing.T) {
	db := dbtest.New().Return("JOIN plans", dbtest.Single([]byte(`{"outlets": 3}`)))
	limits, err := newService(db, time.Now()).LimitsForMerchant(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"outlets": 3}, limits)

	none := dbtest.New().Return("JOIN plans", dbtest.Result{})
	_, err = newService(none, time.Now()).LimitsForMerchant(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrInactive)
}

func TestEvaluateWithGrace(t *testing.T) {
	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	grace := 3 * 24 * time.Hour
	paid := &models.Subscription{Status: models.SubscriptionActive, CurrentPeriodEnd: ptr(periodEnd)}
	trial := &models.Subscription{Status: models.SubscriptionTrialing, TrialEnd: ptr(periodEnd)}

	assert.Equal(t, StandingActive, EvaluateWithGrace(paid, periodEnd.Add(time.Hour), grace))
	assert.Equal(t, StandingActive, EvaluateWithGrace(paid, periodEnd.Add(grace-time.Second), grace))
	assert.Equal(t, StandingPastDue, EvaluateWithGrace(paid, periodEnd.Add(grace), grace))
	assert.Equal(t, StandingPastDue, EvaluateWithGrace(paid, periodEnd.Add(time.Hour), 0))
	assert.Equal(t, StandingExpired, EvaluateWithGrace(trial, periodEnd.Add(time.Hour), grace), "trials get no grace")
}

func TestStandingAppliesGraceDays(t *testing.T) {
	periodEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	db := dbtest.New().Return("FROM subscriptions", dbtest.Result{Rows: [][]any{subRow(uuid.New(), models.SubscriptionActive, nil, &periodEnd)}})

	// Default settings allow 3 grace days.
	standing, _, err := newService(db, periodEnd.Add(72*time.Hour-time.Minute)).Standing(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, StandingActive, standing)

	standing, _, err = newService(db, periodEnd.Add(72*time.Hour)).Standing(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, StandingPastDue, standing)
}

func TestStandingWithoutSubscription(t *testing.T) {
	db := dbtest.New().Return("FROM subscriptions", dbtest.Result{})
	standing, sub, err := newService(db, time.Now()).Standing(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, StandingNone, standing)
}
