package controllers

import (
	"context"
	"net/http"

	"civicsync-engine/models"

	"github.com/gin-gonic/gin"
)

type PaymentReport interface {
	Totals(ctx context.Context) (models.PaymentTotals, error)
}

type PaymentController struct {
	ledger   PaymentReport
	currency string
}

func NewPaymentController(ledger PaymentReport, currency string) *PaymentController {
	return &PaymentController{ledger: ledger, currency: currency}
}

// GetTotal sums every recorded payment
func (pc *PaymentController) GetTotal(c *gin.Context) {
	totals, err := pc.ledger.Totals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":    totals.TotalCents,
		"count":    totals.Count,
		"currency": pc.currency,
	})
}
