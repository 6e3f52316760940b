package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go-paylink/config"
	"go-paylink/payment/db"
	"go-paylink/payment/openpayments"
	"go-paylink/payment/order"
	"go-paylink/payment/qrcode"
	"go-paylink/payment/ticket"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Purchaser is the orchestrator as the HTTP layer sees it.
type Purchaser interface {
	InitiatePurchase(ctx context.Context, p order.Purchase) (*order.Initiated, error)
	CompletePurchase(ctx context.Context, paymentID, interactRef string) (*order.Completion, error)
	CancelPurchase(ctx context.Context, paymentID, reason string) error
	PaymentStatus(paymentID string) (db.PendingPayment, error)
	ActivePayments() int
}

var _ Purchaser = (*order.Orchestrator)(nil)

type Marketplace struct {
	purchases Purchaser
	resolver  order.WalletResolver
	tickets   *ticket.Issuer
	cfg       *config.Config
	log       *zap.Logger
	started   time.Time
}

func NewMarketplace(purchases Purchaser, resolver order.WalletResolver, tickets *ticket.Issuer, cfg *config.Config, logger *zap.Logger) *Marketplace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Marketplace{
		purchases: purchases,
		resolver:  resolver,
		tickets:   tickets,
		cfg:       cfg,
		log:       logger,
		started:   time.Now(),
	}
}

func (m *Marketplace) CreatePayment(c *gin.Context) {
	var req struct {
		EventID             string          `json:"eventId"`
		EventName           string          `json:"eventName"`
		Amount              decimal.Decimal `json:"amount"`
		ClientWalletAddress string          `json:"clientWalletAddress"`
		MerchantID          string          `json:"merchantId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.EventID == "" || req.ClientWalletAddress == "" || !req.Amount.IsPositive() {
		badRequest(c, "eventId, amount and clientWalletAddress are required")
		return
	}

	res, err := m.purchases.InitiatePurchase(c.Request.Context(), order.Purchase{
		EventID:        req.EventID,
		EventName:      req.EventName,
		MerchantID:     req.MerchantID,
		MerchantWallet: m.cfg.MerchantWalletFor(req.MerchantID),
		BuyerWallet:    req.ClientWalletAddress,
		Amount:         req.Amount,
	})
	if err != nil {
		m.log.Warn("create payment failed", zap.String("event_id", req.EventID), zap.Error(err))
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"paymentId":    res.PaymentID,
		"requiresAuth": res.Status == db.StatusPendingAuthorization,
		"authUrl":      res.AuthorizationURL,
		"status":       res.Status,
		"expiresAt":    res.ExpiresAt,
	})
}

// Callback is the finish redirect target of the outgoing payment grant.
func (m *Marketplace) Callback(c *gin.Context) {
	paymentID := c.Query("paymentId")
	interactRef := c.Query("interact_ref")
	if paymentID == "" {
		badRequest(c, "paymentId is required")
		return
	}

	if result := c.Query("result"); result == "grant_rejected" || (result != "" && interactRef == "") {
		if err := m.purchases.CancelPurchase(c.Request.Context(), paymentID, order.ReasonGrantRejected); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":   false,
			"paymentId": paymentID,
			"status":    db.StatusFailed,
			"error":     "Payment authorization was rejected",
			"code":      "GRANT_REJECTED",
		})
		return
	}
	if interactRef == "" {
		badRequest(c, "interact_ref is required")
		return
	}

	if hash := c.Query("hash"); hash != "" {
		rec, err := m.purchases.PaymentStatus(paymentID)
		if err != nil {
			fail(c, err)
			return
		}
		if !openpayments.VerifyInteractionHash(hash, rec.ClientNonce, rec.FinishNonce, interactRef, rec.GrantEndpoint()) {
			m.log.Warn("interaction hash mismatch", zap.String("payment_id", paymentID))
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Interaction hash does not match",
				"code":    "INVALID_HASH",
			})
			return
		}
	}

	m.complete(c, paymentID, interactRef)
}

func (m *Marketplace) CompletePayment(c *gin.Context) {
	var req struct {
		PaymentID   string `json:"paymentId"`
		InteractRef string `json:"interact_ref"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.PaymentID == "" || req.InteractRef == "" {
		badRequest(c, "paymentId and interact_ref are required")
		return
	}
	m.complete(c, req.PaymentID, req.InteractRef)
}

func (m *Marketplace) complete(c *gin.Context, paymentID, interactRef string) {
	res, err := m.purchases.CompletePurchase(c.Request.Context(), paymentID, interactRef)
	duplicate := errors.Is(err, order.ErrDuplicateCompletion)
	if err != nil && !duplicate {
		m.log.Warn("complete payment failed", zap.String("payment_id", paymentID), zap.Error(err))
		fail(c, err)
		return
	}

	body := gin.H{
		"success":           true,
		"paymentId":         res.PaymentID,
		"outgoingPaymentId": res.OutgoingPaymentID,
		"state":             res.State,
		"eventId":           res.EventID,
	}
	// A ticket is issued once, on the call that completed the payment.
	if duplicate {
		body["duplicate"] = true
	} else if m.tickets.Enabled() && res.State == openpayments.StateCompleted {
		token, err := m.tickets.Issue(res.PaymentID, res.EventID)
		if err != nil {
			m.log.Error("failed to issue ticket", zap.String("payment_id", paymentID), zap.Error(err))
		} else {
			body["accessToken"] = token
		}
	}
	c.JSON(http.StatusOK, body)
}

func (m *Marketplace) PaymentStatus(c *gin.Context) {
	rec, err := m.purchases.PaymentStatus(c.Param("paymentId"))
	if err != nil {
		fail(c, err)
		return
	}

	payment := gin.H{
		"paymentId":         rec.ID,
		"status":            rec.Status,
		"state":             rec.OutgoingState,
		"eventId":           rec.EventID,
		"eventName":         rec.EventName,
		"amount":            rec.Amount,
		"assetCode":         rec.MerchantWallet.AssetCode,
		"outgoingPaymentId": rec.OutgoingPaymentID,
		"createdAt":         rec.CreatedAt,
		"completedAt":       nil,
	}
	if !rec.CompletedAt.IsZero() {
		payment["completedAt"] = rec.CompletedAt
	}
	if rec.FailureReason != "" {
		payment["failureReason"] = rec.FailureReason
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": payment})
}

// PaymentQR renders the authorization URL of a pending purchase as a PNG.
func (m *Marketplace) PaymentQR(c *gin.Context) {
	rec, err := m.purchases.PaymentStatus(c.Param("paymentId"))
	if err != nil {
		fail(c, err)
		return
	}
	if rec.Status != db.StatusPendingAuthorization || rec.Continued() {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "Payment is no longer awaiting authorization",
			"code":    "NOT_PENDING",
		})
		return
	}

	png, err := qrcode.AuthorizationPNG(rec.AuthorizationURL, qrcode.DefaultSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (m *Marketplace) ValidateAccess(c *gin.Context) {
	if !m.tickets.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"valid": false, "error": "Ticket validation is not configured"})
		return
	}
	eventID, token := c.Query("event"), c.Query("token")
	if eventID == "" || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "event and token are required"})
		return
	}

	claims, err := m.tickets.Validate(token, eventID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"paymentId": claims.PaymentID(),
		"eventId":   claims.EventID,
		"expiresAt": claims.ExpiresAt.Time,
	})
}
