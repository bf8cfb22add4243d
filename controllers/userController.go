package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"civicsync-engine/engine"
	"civicsync-engine/middlewares"
	"civicsync-engine/models"
	"civicsync-engine/payments"

	"github.com/gin-gonic/gin"
)

const subscriptionRefPrefix = "user:"

// Subscription is the premium plan offered to citizens.
type Subscription struct {
	PriceCents int64
	Currency   string
	SessionTTL time.Duration
	// ConfirmWindow extends the stored session past checkout expiry for
	// late payment webhooks.
	ConfirmWindow time.Duration
}

type UserController struct {
	users    UserRepository
	sessions engine.SessionStore
	provider payments.Provider
	ledger   engine.PaymentLedger
	plan     Subscription
}

func NewUserController(users UserRepository, sessions engine.SessionStore, provider payments.Provider, ledger engine.PaymentLedger, plan Subscription) *UserController {
	return &UserController{users: users, sessions: sessions, provider: provider, ledger: ledger, plan: plan}
}

// ListUsers returns every local account, newest first
func (uc *UserController) ListUsers(c *gin.Context) {
	users, err := uc.users.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// BlockUser blocks or unblocks an account by email
func (uc *UserController) BlockUser(c *gin.Context) {
	var input struct {
		Email   string `json:"email" binding:"required,email"`
		Blocked *bool  `json:"blocked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	user, err := uc.users.SetBlocked(c.Request.Context(), input.Email, *input.Blocked)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// MakeAdmin grants the admin role. It takes effect on the next login.
func (uc *UserController) MakeAdmin(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	user, err := uc.users.SetRole(c.Request.Context(), input.Email, models.RoleAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateSubscriptionSession opens a premium checkout for the caller
func (uc *UserController) CreateSubscriptionSession(c *gin.Context) {
	actor, _ := middlewares.CurrentActor(c)
	if uc.provider == nil || uc.sessions == nil {
		respondError(c, fmt.Errorf("%w: payments not configured", engine.ErrUnavailable))
		return
	}
	ctx := c.Request.Context()

	user, err := uc.users.FindByID(ctx, actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.Premium {
		respondError(c, fmt.Errorf("%w: already subscribed", engine.ErrNotEligible))
		return
	}

	checkout, err := uc.provider.CreateCheckout(ctx, payments.CheckoutRequest{
		Purpose:     payments.PurposeSubscription,
		Reference:   actor.UserID,
		CustomerID:  actor.UserID,
		Email:       actor.Email,
		AmountCents: uc.plan.PriceCents,
		Currency:    uc.plan.Currency,
		TTL:         uc.plan.SessionTTL,
	})
	if err != nil {
		respondError(c, fmt.Errorf("%w: create checkout: %v", engine.ErrUnavailable, err))
		return
	}
	if err := uc.sessions.SaveSession(ctx, checkout.SessionID, subscriptionRefPrefix+actor.UserID, uc.plan.SessionTTL+uc.plan.ConfirmWindow); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

// ConfirmPremium is called by the payment relay once a subscription is
// paid. Repeated deliveries return the account unchanged.
func (uc *UserController) ConfirmPremium(c *gin.Context) {
	var input struct {
		SessionID string `json:"sessionId" binding:"required"`
		UserID    string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	user, err := uc.users.FindByID(ctx, input.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.Premium {
		c.JSON(http.StatusOK, user)
		return
	}

	if uc.sessions != nil {
		boundTo, err := uc.sessions.LookupSession(ctx, input.SessionID)
		if errors.Is(err, engine.ErrNotFound) {
			respondError(c, fmt.Errorf("%w: unknown or expired payment reference", engine.ErrNotEligible))
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if boundTo != subscriptionRefPrefix+input.UserID {
			respondError(c, fmt.Errorf("%w: payment reference belongs to another checkout", engine.ErrNotEligible))
			return
		}
	}

	if uc.ledger != nil {
		err := uc.ledger.Record(ctx, &models.Payment{
			Reference:   input.SessionID,
			Kind:        models.PaymentSubscription,
			UserID:      input.UserID,
			AmountCents: uc.plan.PriceCents,
			Currency:    uc.plan.Currency,
			CreatedAt:   time.Now().UTC(),
		})
		if err != nil {
			respondError(c, err)
			return
		}
	}

	user, err = uc.users.SetPremium(ctx, input.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if uc.sessions != nil {
		if err := uc.sessions.DeleteSession(ctx, input.SessionID); err != nil {
			slog.Warn("failed to delete subscription session", "session_id", input.SessionID, "error", err)
		}
	}
	slog.Info("user upgraded to premium", "user_id", input.UserID)
	c.JSON(http.StatusOK, user)
}
