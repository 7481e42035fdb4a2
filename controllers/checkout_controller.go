package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutController exposes the payment intent creation entrypoint.
type CheckoutController struct {
	Checkout *services.CheckoutService
	Logger   *zap.Logger
}

type createIntentRequest struct {
	Amount          int                 `json:"amount"`
	Currency        string              `json:"currency"`
	IdempotencyKey  string              `json:"idempotency_key"`
	OrderID         string              `json:"order_id"`
	UserID          string              `json:"user_id"`
	CartItems       []services.CartItem `json:"cart_items"`
	ShippingAddress *models.Address     `json:"shipping_address"`
	BillingAddress  *models.Address     `json:"billing_address"`
	CustomerEmail   string              `json:"customer_email"`
}

// CreateIntent handles POST /payments/create-intent.
func (cc *CheckoutController) CreateIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		cc.respondError(c, http.StatusBadRequest,
			"Invalid amount provided. Amount must be a positive number.", err)
		return
	}

	svcReq := services.CreateIntentRequest{
		Amount:          req.Amount,
		Currency:        req.Currency,
		IdempotencyKey:  req.IdempotencyKey,
		CustomerEmail:   req.CustomerEmail,
		CartItems:       req.CartItems,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}

	// The identity middleware wins over the body; both are optional
	// since guest checkout is allowed.
	userID := req.UserID
	if hdr := middleware.GetUserID(c); hdr != "" {
		userID = hdr
	}
	if userID != "" {
		if uid, err := uuid.Parse(userID); err == nil {
			svcReq.UserID = &uid
		} else {
			cc.Logger.Warn("Ignoring malformed user id", zap.String("user_id", userID))
		}
	}

	result, err := cc.Checkout.CreateIntent(c.Request.Context(), svcReq)
	if err != nil {
		cc.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"clientSecret": result.ClientSecret,
		"orderId":      result.OrderID,
		"orderNumber":  result.OrderNumber,
	}})
}

func (cc *CheckoutController) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		cc.respondError(c, http.StatusBadRequest,
			"Invalid amount provided. Amount must be a positive number.", err)
	case errors.Is(err, services.ErrAmountMismatch):
		cc.respondError(c, http.StatusConflict,
			"Amount mismatch for existing idempotency key. This may indicate a security issue.", err)
	case errors.Is(err, services.ErrIntentNotFound):
		cc.respondError(c, http.StatusNotFound,
			"Payment intent not found for existing idempotency key.", err)
	case errors.Is(err, services.ErrOrderCreationFailed):
		detail := strings.TrimPrefix(err.Error(), services.ErrOrderCreationFailed.Error()+": ")
		cc.respondError(c, http.StatusInternalServerError,
			fmt.Sprintf("Failed to create order record: %s", detail), err)
	default:
		cc.respondError(c, http.StatusInternalServerError,
			"Failed to create payment intent.", err)
	}
}

// respondError logs a warning and writes the JSON error envelope.
func (cc *CheckoutController) respondError(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		cc.Logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": gin.H{"message": msg}})
}
