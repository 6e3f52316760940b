package controllers

import (
	"context"
	"errors"
	"net/http"

	"go-paylink/payment/openpayments"
	"go-paylink/payment/order"

	"github.com/gin-gonic/gin"
)

// errorStatus maps a purchase error to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrInvalidPurchase):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, order.ErrSelfPayment):
		return http.StatusBadRequest, "SELF_PAYMENT"
	case errors.Is(err, order.ErrWalletResolution):
		return http.StatusBadRequest, "WALLET_RESOLUTION_FAILED"
	case errors.Is(err, order.ErrPaymentNotFound):
		return http.StatusNotFound, "PAYMENT_NOT_FOUND"
	case errors.Is(err, order.ErrCompletionInProgress):
		return http.StatusConflict, "COMPLETION_IN_PROGRESS"
	case errors.Is(err, order.ErrAuthorizationIncomplete):
		return http.StatusConflict, "AUTHORIZATION_INCOMPLETE"
	case errors.Is(err, order.ErrPaymentFailed):
		return http.StatusPaymentRequired, "PAYMENT_FAILED"
	case errors.Is(err, order.ErrPaymentTimeout):
		return http.StatusGatewayTimeout, "PAYMENT_TIMEOUT"
	case errors.Is(err, openpayments.ErrGrantDenied):
		return http.StatusForbidden, "GRANT_DENIED"
	case errors.Is(err, openpayments.ErrInvariantViolation):
		return http.StatusBadGateway, "INVARIANT_VIOLATION"
	case errors.Is(err, openpayments.ErrGrantRequest):
		return http.StatusBadGateway, "GRANT_REQUEST_FAILED"
	case errors.Is(err, openpayments.ErrResourceRequest):
		return http.StatusBadGateway, "RESOURCE_REQUEST_FAILED"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "REQUEST_CANCELLED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    code,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
		"code":    "INVALID_REQUEST",
	})
}
