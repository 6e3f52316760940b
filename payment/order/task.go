// background work: settlement polling and record expiry

package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-paylink/payment/db"
	"go-paylink/payment/openpayments"

	"go.uber.org/zap"
)

// settle polls the outgoing payment until it is COMPLETED or FAILED or the
// attempt budget runs out. The interval is only waited between attempts.
// A cancelled ctx stops polling and leaves the record pending.
func (o *Orchestrator) settle(ctx context.Context, rec db.PendingPayment, token string, log *zap.Logger) (*Completion, error) {
	buyer := rec.BuyerWallet
	var lastErr error

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, o.cfg.PollInterval); err != nil {
				return nil, err
			}
		}

		payment, err := o.client.GetOutgoingPayment(ctx, buyer.ResourceServer, token, rec.OutgoingPaymentID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.Warn("outgoing payment poll failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		if err := openpayments.ValidateOutgoingPayment(*payment); err != nil {
			return nil, err
		}

		state := payment.EffectiveState()
		log.Debug("outgoing payment polled", zap.Int("attempt", attempt), zap.String("state", string(state)),
			zap.String("sent_amount", payment.SentAmount.Value))

		switch state {
		case openpayments.StateCompleted:
			done, err := o.store.Update(rec.ID, func(p *db.PendingPayment) error {
				now := o.now()
				p.Status = db.StatusCompleted
				p.OutgoingState = state
				p.CompletedAt = now
				p.UpdatedAt = now
				return nil
			})
			if err != nil {
				return nil, o.notFound(rec.ID, err)
			}
			log.Info("payment completed", zap.String("outgoing_payment_id", done.OutgoingPaymentID), zap.Int("attempts", attempt))
			return completionOf(done), nil

		case openpayments.StateFailed:
			_, err := o.store.Update(rec.ID, func(p *db.PendingPayment) error {
				p.Status = db.StatusFailed
				p.OutgoingState = state
				p.FailureReason = ReasonPaymentFailed
				p.UpdatedAt = o.now()
				return nil
			})
			if err != nil {
				log.Error("failed to mark payment failed", zap.Error(err))
			}
			log.Warn("outgoing payment failed", zap.String("outgoing_payment_id", payment.ID), zap.Int("attempts", attempt))
			return nil, fmt.Errorf("%w: outgoing payment %s", ErrPaymentFailed, payment.ID)
		}

		if _, err := o.store.Update(rec.ID, func(p *db.PendingPayment) error {
			p.OutgoingState = state
			p.UpdatedAt = o.now()
			return nil
		}); err != nil {
			return nil, o.notFound(rec.ID, err)
		}
	}

	log.Warn("outgoing payment did not settle", zap.Int("attempts", o.cfg.MaxAttempts), zap.Error(lastErr))
	err := fmt.Errorf("%w: outgoing payment %s after %d attempts", ErrPaymentTimeout, rec.OutgoingPaymentID, o.cfg.MaxAttempts)
	if lastErr != nil {
		err = errors.Join(err, lastErr)
	}
	return nil, err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RemoveExpired drops records past their lifetime.
func (o *Orchestrator) RemoveExpired() int {
	n := o.store.Expire(o.now())
	if n > 0 {
		o.log.Info("expired pending payments removed", zap.Int("count", n))
	}
	return n
}

// StartJanitor runs RemoveExpired every interval until ctx is done.
func (o *Orchestrator) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.RemoveExpired()
			}
		}
	}()
}
