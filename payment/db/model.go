package db

import (
	"time"

	"go-paylink/payment/openpayments"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle of a purchase as seen by the marketplace.
type Status string

const (
	StatusPendingAuthorization Status = "pending_authorization"
	StatusCompleted            Status = "completed"
	StatusFailed               Status = "failed"
)

// PendingPayment holds what is needed to resume a purchase after the buyer
// comes back from the authorization server.
type PendingPayment struct {
	ID         string          `json:"paymentId"`  // uuid, not part of the wire protocol
	EventID    string          `json:"eventId"`    // ticketed event being bought
	EventName  string          `json:"eventName"`  // display only
	MerchantID string          `json:"merchantId"` // key into the merchant directory, may be empty
	Amount     decimal.Decimal `json:"amount"`     // price in major units of the merchant's asset

	BuyerWallet    openpayments.WalletAddress `json:"buyerWallet"`
	MerchantWallet openpayments.WalletAddress `json:"merchantWallet"`

	IncomingPaymentID string              `json:"incomingPaymentId"`
	QuoteID           string              `json:"quoteId"`
	DebitAmount       openpayments.Amount `json:"debitAmount"` // quote debit, also the outgoing grant limit

	Continuation     openpayments.Continuation `json:"continuation"`     // from the pending outgoing grant
	ClientNonce      string                    `json:"-"`                // sent in interact.finish
	FinishNonce      string                    `json:"-"`                // interact.finish returned by the auth server
	AuthorizationURL string                    `json:"authorizationUrl"` // interact.redirect

	OutgoingToken     string                            `json:"-"` // access token from the continued grant
	OutgoingPaymentID string                            `json:"outgoingPaymentId,omitempty"`
	OutgoingState     openpayments.OutgoingPaymentState `json:"state,omitempty"` // last polled state

	Status        Status `json:"status"`
	Completing    bool   `json:"-"` // a CompletePurchase call owns the record
	FailureReason string `json:"failureReason,omitempty"`

	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"` // zero never expires
}

// GrantEndpoint is the authorization server the outgoing grant was requested
// from; it takes part in the interaction hash.
func (p PendingPayment) GrantEndpoint() string {
	return p.BuyerWallet.AuthServer
}

// Expired reports whether the record is past its lifetime at now.
func (p PendingPayment) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Continued reports whether the outgoing grant was already continued. A
// continued grant cannot be continued again.
func (p PendingPayment) Continued() bool {
	return p.OutgoingToken != ""
}
