package subscription

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikhilbhutani/rentalshop/internal/apperr"
	"github.com/nikhilbhutani/rentalshop/internal/httpapi"
)

const SignatureHeader = "X-Billing-Signature"

const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

// PaymentEvent is the body a payment provider posts to the billing webhook.
type PaymentEvent struct {
	ID             string          `json:"id" validate:"required"`
	Type           string          `json:"type" validate:"required"`
	SubscriptionID uuid.UUID       `json:"subscription_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
}

func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of payload.
func VerifySignature(payload []byte, secret, header string) error {
	if secret == "" || !strings.HasPrefix(header, "sha256=") {
		return ErrInvalidSignature
	}
	if !hmac.Equal([]byte(Sign(payload, secret)), []byte(header)) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseEvent verifies and decodes a webhook delivery.
func ParseEvent(payload []byte, secret, header string) (*PaymentEvent, error) {
	if err := VerifySignature(payload, secret, header); err != nil {
		return nil, err
	}
	var ev PaymentEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, apperr.Validation("invalid payment event: " + err.Error())
	}
	switch ev.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}
	if err := httpapi.Validate(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
