package order

import "errors"

var (
	ErrInvalidPurchase         = errors.New("invalid purchase request")
	ErrWalletResolution        = errors.New("wallet address resolution failed")
	ErrSelfPayment             = errors.New("buyer and merchant wallet are the same")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrAuthorizationIncomplete = errors.New("authorization incomplete")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrPaymentTimeout          = errors.New("payment did not settle in time")

	// ErrDuplicateCompletion is returned together with the stored result
	// when a completed purchase is completed again.
	ErrDuplicateCompletion = errors.New("payment already completed")

	// ErrCompletionInProgress means another caller currently owns the record.
	ErrCompletionInProgress = errors.New("payment completion already in progress")
)

// Failure reasons stored on a failed record.
const (
	ReasonGrantRejected = "grant_rejected"
	ReasonGrantDenied   = "grant_denied"
	ReasonPaymentFailed = "outgoing_payment_failed"
)
