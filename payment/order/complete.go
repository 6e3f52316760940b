package order

import (
	"context"
	"errors"
	"fmt"

	"go-paylink/payment/db"
	"go-paylink/payment/openpayments"

	"go.uber.org/zap"
)

// Completion is the settlement outcome of a purchase.
type Completion struct {
	PaymentID         string
	EventID           string
	OutgoingPaymentID string
	State             openpayments.OutgoingPaymentState
}

func completionOf(rec db.PendingPayment) *Completion {
	return &Completion{
		PaymentID:         rec.ID,
		EventID:           rec.EventID,
		OutgoingPaymentID: rec.OutgoingPaymentID,
		State:             rec.OutgoingState,
	}
}

// CompletePurchase continues the outgoing grant with interactRef, creates the
// outgoing payment and polls it to a terminal state. A completed record is
// answered from the store together with ErrDuplicateCompletion. A record whose
// grant was already continued, for example after ErrPaymentTimeout, resumes
// from the stored token and outgoing payment without contacting the
// authorization server again.
func (o *Orchestrator) CompletePurchase(ctx context.Context, paymentID, interactRef string) (*Completion, error) {
	rec, err := o.acquire(paymentID)
	if err != nil {
		if errors.Is(err, ErrDuplicateCompletion) {
			return completionOf(rec), err
		}
		return nil, err
	}
	defer o.release(paymentID)

	log := o.log.With(zap.String("payment_id", paymentID), zap.String("event_id", rec.EventID))

	if !rec.Continued() {
		if rec, err = o.continueGrant(ctx, rec, interactRef, log); err != nil {
			return nil, err
		}
	} else {
		log.Info("resuming continued purchase", zap.String("outgoing_payment_id", rec.OutgoingPaymentID))
	}

	if rec.OutgoingPaymentID == "" {
		if rec, err = o.createOutgoingPayment(ctx, rec, log); err != nil {
			return nil, err
		}
	}

	return o.settle(ctx, rec, rec.OutgoingToken, log)
}

// continueGrant exchanges interactRef for the outgoing payment token and
// records it, so the grant is continued at most once.
func (o *Orchestrator) continueGrant(ctx context.Context, rec db.PendingPayment, interactRef string, log *zap.Logger) (db.PendingPayment, error) {
	grant, err := o.client.ContinueGrant(ctx, rec.Continuation, interactRef)
	if err != nil {
		switch {
		case errors.Is(err, openpayments.ErrGrantDenied):
			log.Warn("buyer denied the outgoing payment grant", zap.Error(err))
			o.markFailed(rec.ID, ReasonGrantDenied)
			return rec, err
		case errors.Is(err, openpayments.ErrGrantNotReady):
			return rec, fmt.Errorf("%w: %w", ErrAuthorizationIncomplete, err)
		}
		log.Warn("grant continuation failed", zap.Error(err))
		return rec, err
	}
	token := grant.Token()
	if token == "" {
		return rec, fmt.Errorf("%w: continuation returned no access token", ErrAuthorizationIncomplete)
	}

	rec, err = o.store.Update(rec.ID, func(p *db.PendingPayment) error {
		p.OutgoingToken = token
		p.UpdatedAt = o.now()
		return nil
	})
	if err != nil {
		return rec, o.notFound(rec.ID, err)
	}
	log.Info("outgoing payment grant finalized")
	return rec, nil
}

// createOutgoingPayment creates the outgoing payment against the stored quote
// and records its id before validating it, so a retry never creates a second
// payment for the same purchase.
func (o *Orchestrator) createOutgoingPayment(ctx context.Context, rec db.PendingPayment, log *zap.Logger) (db.PendingPayment, error) {
	buyer := rec.BuyerWallet
	payment, err := o.client.CreateOutgoingPayment(ctx, buyer.ResourceServer, rec.OutgoingToken, openpayments.OutgoingPaymentRequest{
		WalletAddress: buyer.ID,
		QuoteID:       rec.QuoteID,
		Metadata: map[string]string{
			"paymentId":   rec.ID,
			"eventId":     rec.EventID,
			"description": "Ticket purchase: " + rec.EventName,
		},
	})
	if err != nil {
		log.Warn("outgoing payment creation failed", zap.Error(err))
		return rec, err
	}

	rec, err = o.store.Update(rec.ID, func(p *db.PendingPayment) error {
		p.OutgoingPaymentID = payment.ID
		p.OutgoingState = payment.EffectiveState()
		p.UpdatedAt = o.now()
		return nil
	})
	if err != nil {
		return rec, o.notFound(rec.ID, err)
	}
	if err := openpayments.ValidateOutgoingPayment(*payment); err != nil {
		return rec, err
	}
	log.Info("outgoing payment created", zap.String("outgoing_payment_id", payment.ID), zap.String("state", string(rec.OutgoingState)))
	return rec, nil
}

// CancelPurchase revokes the outgoing grant of a pending purchase and marks it
// failed with reason. A failed cancel call is logged; the record is failed
// regardless.
func (o *Orchestrator) CancelPurchase(ctx context.Context, paymentID, reason string) error {
	rec, err := o.store.Get(paymentID)
	if err != nil {
		return o.notFound(paymentID, err)
	}
	switch {
	case rec.Status == db.StatusCompleted:
		return fmt.Errorf("%w: %s", ErrDuplicateCompletion, paymentID)
	case rec.Status == db.StatusFailed:
		return nil
	case rec.Completing:
		return fmt.Errorf("%w: %s", ErrCompletionInProgress, paymentID)
	}

	if err := o.client.CancelGrant(ctx, rec.Continuation); err != nil {
		o.log.Warn("grant cancellation failed", zap.String("payment_id", paymentID), zap.Error(err))
	}
	o.markFailed(paymentID, reason)
	o.log.Info("purchase cancelled", zap.String("payment_id", paymentID), zap.String("reason", reason))
	return nil
}

// PaymentStatus returns the stored record.
func (o *Orchestrator) PaymentStatus(paymentID string) (db.PendingPayment, error) {
	rec, err := o.store.Get(paymentID)
	if err != nil {
		return db.PendingPayment{}, o.notFound(paymentID, err)
	}
	return rec, nil
}

// ActivePayments is the number of records currently held.
func (o *Orchestrator) ActivePayments() int {
	return o.store.Len()
}

// acquire marks the record as owned by one CompletePurchase call.
func (o *Orchestrator) acquire(paymentID string) (db.PendingPayment, error) {
	rec, err := o.store.Update(paymentID, func(p *db.PendingPayment) error {
		switch {
		case p.Status == db.StatusCompleted:
			return fmt.Errorf("%w: %s", ErrDuplicateCompletion, p.ID)
		case p.Status == db.StatusFailed:
			return fmt.Errorf("%w: %s (%s)", ErrPaymentFailed, p.ID, p.FailureReason)
		case p.Completing:
			return fmt.Errorf("%w: %s", ErrCompletionInProgress, p.ID)
		}
		p.Completing = true
		return nil
	})
	if errors.Is(err, db.ErrNotFound) {
		return rec, o.notFound(paymentID, err)
	}
	return rec, err
}

func (o *Orchestrator) release(paymentID string) {
	_, err := o.store.Update(paymentID, func(p *db.PendingPayment) error {
		p.Completing = false
		return nil
	})
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		o.log.Error("failed to release pending payment", zap.String("payment_id", paymentID), zap.Error(err))
	}
}

func (o *Orchestrator) markFailed(paymentID, reason string) {
	_, err := o.store.Update(paymentID, func(p *db.PendingPayment) error {
		p.Status = db.StatusFailed
		p.FailureReason = reason
		p.UpdatedAt = o.now()
		return nil
	})
	if err != nil {
		o.log.Error("failed to mark payment failed", zap.String("payment_id", paymentID), zap.Error(err))
	}
}

func (o *Orchestrator) notFound(paymentID string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	return err
}
