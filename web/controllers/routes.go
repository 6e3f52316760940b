package controllers

import (
	"github.com/gin-gonic/gin"
)

// Routes registers the marketplace endpoints. limit guards the routes that
// start or finish a purchase.
func (m *Marketplace) Routes(r gin.IRouter, limit gin.HandlerFunc) {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api := r.Group("/api/marketplace")
	api.POST("/create-payment", limit, m.CreatePayment)
	api.POST("/complete-payment", limit, m.CompletePayment)
	api.GET("/callback", limit, m.Callback)
	api.GET("/payment-status/:paymentId", m.PaymentStatus)
	api.GET("/payment-qr/:paymentId", m.PaymentQR)

	r.GET("/api/validate-access", limit, m.ValidateAccess)
	r.GET("/api/info", m.Info)
	r.GET("/health", m.Health)
}
