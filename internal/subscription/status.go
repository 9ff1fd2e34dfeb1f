// Package subscription tracks each merchant's plan subscription and decides
// whether it currently entitles the merchant to mutate data.
package subscription

import (
	"time"

	"github.com/nikhilbhutani/rentalshop/internal/models"
)

// Standing is the effective state of a subscription at a point in time.
// It can differ from the stored status when a trial or period has lapsed
// but no sweep has persisted that yet.
type Standing string

const (
	StandingActive    Standing = "active"
	StandingPastDue   Standing = "past_due"
	StandingExpired   Standing = "expired"
	StandingCancelled Standing = "cancelled"
	StandingNone      Standing = "none"
)

// Entitled reports whether the standing permits mutations.
func (s Standing) Entitled() bool {
	return s == StandingActive
}

// Evaluate classifies sub at now with no grace period.
func Evaluate(sub *models.Subscription, now time.Time) Standing {
	return EvaluateWithGrace(sub, now, 0)
}

// EvaluateWithGrace classifies sub at now. A paid period that ended less
// than grace ago still counts as active. Trials get no grace.
func EvaluateWithGrace(sub *models.Subscription, now time.Time, grace time.Duration) Standing {
	if sub == nil {
		return StandingNone
	}

	switch sub.Status {
	case models.SubscriptionCancelled:
		return StandingCancelled
	case models.SubscriptionExpired:
		return StandingExpired
	case models.SubscriptionTrialing:
		if sub.TrialEnd == nil || !sub.TrialEnd.After(now) {
			return StandingExpired
		}
		return StandingActive
	case models.SubscriptionActive:
		if sub.CurrentPeriodEnd != nil && !sub.CurrentPeriodEnd.Add(grace).After(now) {
			return StandingPastDue
		}
		return StandingActive
	case models.SubscriptionPastDue:
		return StandingPastDue
	}
	return StandingNone
}
