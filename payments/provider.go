// Package payments is the boundary to the external payment processor. The
// engine only asks it to open a checkout; confirmation arrives later through
// the trusted webhook.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRequest = errors.New("invalid checkout request")

// Purpose enum
type Purpose string

const (
	PurposeBoost        Purpose = "boost"
	PurposeSubscription Purpose = "subscription"
)

type CheckoutRequest struct {
	Purpose     Purpose
	Reference   string // issue id for boosts, user id for subscriptions
	CustomerID  string
	Email       string
	AmountCents int64
	Currency    string
	TTL         time.Duration
}

// Checkout is the payment intent handed back to the client. SessionID is the
// payment reference the confirmation webhook will quote.
type Checkout struct {
	SessionID   string    `json:"sessionId"`
	URL         string    `json:"url"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

//go:generate mockgen -destination=mock_provider.go -package=payments . Provider

// Provider opens checkout sessions with the payment processor.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// HostedCheckout builds checkout links for a hosted payment page. The page
// posts the confirmation to the webhook once the processor settles.
type HostedCheckout struct {
	baseURL string
	now     func() time.Time
}

func NewHostedCheckout(baseURL string) *HostedCheckout {
	return &HostedCheckout{
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (h *HostedCheckout) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if req.Reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrInvalidRequest)
	}

	sessionID := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	q := url.Values{}
	q.Set("session", sessionID)
	q.Set("purpose", string(req.Purpose))
	q.Set("ref", req.Reference)

	return &Checkout{
		SessionID:   sessionID,
		URL:         h.baseURL + "/checkout?" + q.Encode(),
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		ExpiresAt:   h.now().Add(req.TTL).UTC(),
	}, nil
}
