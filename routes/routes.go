package routes

import (
	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func Register(r *gin.Engine, cc *controllers.CheckoutController, wc *controllers.WebhookController, ec *controllers.EmailController) {
	payments := r.Group("/payments")
	payments.Use(middleware.Identity(), middleware.RateLimit(rate.Limit(5), 10))
	payments.POST("/create-intent", cc.CreateIntent)

	// Stripe webhook: no identity or rate limit, the signature check
	// is the authentication.
	r.POST("/stripe/webhook", wc.HandleStripeWebhook)

	emails := r.Group("/emails")
	emails.GET("/stats", ec.Stats)
	emails.POST("/process", ec.ProcessBatch)
}
