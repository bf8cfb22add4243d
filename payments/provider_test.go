package payments

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestHostedCheckout(t *testing.T) {
	h := NewHostedCheckout("https://pay.example/")
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	co, err := h.CreateCheckout(context.Background(), CheckoutRequest{
		Purpose:     PurposeBoost,
		Reference:   "issue-1",
		AmountCents: 10000,
		Currency:    "usd",
		TTL:         30 * time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(co.SessionID, "cs_") || len(co.SessionID) != 35 {
		t.Errorf("session id = %q", co.SessionID)
	}
	u, err := url.Parse(co.URL)
	if err != nil || u.Path != "/checkout" {
		t.Fatalf("url = %q", co.URL)
	}
	if q := u.Query(); q.Get("session") != co.SessionID || q.Get("ref") != "issue-1" || q.Get("purpose") != "boost" {
		t.Errorf("query = %v", q)
	}
	if !co.ExpiresAt.Equal(fixed.Add(30 * time.Minute)) {
		t.Errorf("expires = %v", co.ExpiresAt)
	}

	other, _ := h.CreateCheckout(context.Background(), CheckoutRequest{Reference: "issue-1", AmountCents: 1})
	if other.SessionID == co.SessionID {
		t.Error("session ids must be unique")
	}
}

func TestHostedCheckoutRejectsBadRequests(t *testing.T) {
	h := NewHostedCheckout("https://pay.example")
	for _, req := range []CheckoutRequest{
		{Reference: "issue-1"},
		{AmountCents: 100},
	} {
		if _, err := h.CreateCheckout(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("CreateCheckout(%+v) err = %v, want ErrInvalidRequest", req, err)
		}
	}
}
