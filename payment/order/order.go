// Package order drives a marketplace purchase across the merchant's and the
// buyer's Open Payments servers, from quote to settled outgoing payment.
package order

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go-paylink/payment/db"
	"go-paylink/payment/openpayments"
	"go-paylink/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 10
	DefaultTTL          = 24 * time.Hour
)

type WalletResolver interface {
	Resolve(ctx context.Context, walletURI string) (*openpayments.WalletAddress, error)
}

type GrantNegotiator interface {
	RequestGrant(ctx context.Context, authServer string, access []openpayments.AccessItem, interact *openpayments.InteractRequest) (*openpayments.Grant, error)
	ContinueGrant(ctx context.Context, cont openpayments.Continuation, interactRef string) (*openpayments.Grant, error)
	CancelGrant(ctx context.Context, cont openpayments.Continuation) error
}

type ResourceClient interface {
	CreateIncomingPayment(ctx context.Context, resourceServer, accessToken string, req openpayments.IncomingPaymentRequest) (*openpayments.IncomingPayment, error)
	CreateQuote(ctx context.Context, resourceServer, accessToken string, req openpayments.QuoteRequest) (*openpayments.Quote, error)
	CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken string, req openpayments.OutgoingPaymentRequest) (*openpayments.OutgoingPayment, error)
	GetOutgoingPayment(ctx context.Context, resourceServer, accessToken, id string) (*openpayments.OutgoingPayment, error)
}

// Client is everything the orchestrator needs from Open Payments.
// *openpayments.Client satisfies it.
type Client interface {
	WalletResolver
	GrantNegotiator
	ResourceClient
}

var _ Client = (*openpayments.Client)(nil)

type Config struct {
	// CallbackURL receives the buyer after consent; paymentId is added to
	// its query string.
	CallbackURL string

	PollInterval time.Duration
	MaxAttempts  int

	// TTL bounds how long a pending record can be completed. Zero keeps
	// records forever.
	TTL time.Duration
}

type Orchestrator struct {
	client Client
	store  db.Store
	cfg    Config
	log    *zap.Logger

	now      func() time.Time
	newID    func() string
	newNonce func() string
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithIDs(newID, newNonce func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
		o.newNonce = newNonce
	}
}

func New(client Client, store db.Store, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		client:   client,
		store:    store,
		cfg:      cfg,
		log:      logger,
		now:      time.Now,
		newID:    utils.GenerateUUID,
		newNonce: utils.GenerateNonce,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Purchase is a buyer's request to pay a merchant for an event.
type Purchase struct {
	EventID        string
	EventName      string
	MerchantID     string
	MerchantWallet string
	BuyerWallet    string
	Amount         decimal.Decimal // major units of the merchant's asset
}

// Initiated is the result of InitiatePurchase. AuthorizationURL is where the
// buyer approves the outgoing payment.
type Initiated struct {
	PaymentID        string
	Status           db.Status
	AuthorizationURL string
	ExpiresAt        time.Time
}

func (p Purchase) validate() error {
	switch {
	case p.EventID == "":
		return fmt.Errorf("%w: missing event id", ErrInvalidPurchase)
	case p.BuyerWallet == "":
		return fmt.Errorf("%w: missing buyer wallet address", ErrInvalidPurchase)
	case p.MerchantWallet == "":
		return fmt.Errorf("%w: missing merchant wallet address", ErrInvalidPurchase)
	case !p.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPurchase, p.Amount)
	}
	return nil
}

// InitiatePurchase sets up the incoming payment and quote, requests the
// interactive outgoing grant and stores the pending record.
func (o *Orchestrator) InitiatePurchase(ctx context.Context, p Purchase) (*Initiated, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	buyerURI := openpayments.NormalizeWalletURL(p.BuyerWallet)
	merchantURI := openpayments.NormalizeWalletURL(p.MerchantWallet)
	if buyerURI == merchantURI {
		return nil, fmt.Errorf("%w: %s", ErrSelfPayment, buyerURI)
	}

	buyer, merchant, err := o.resolveWallets(ctx, buyerURI, merchantURI)
	if err != nil {
		return nil, err
	}
	if buyer.ID == merchant.ID {
		return nil, fmt.Errorf("%w: %s", ErrSelfPayment, buyer.ID)
	}

	paymentID := o.newID()
	log := o.log.With(zap.String("payment_id", paymentID), zap.String("event_id", p.EventID))
	log.Info("wallets resolved",
		zap.String("buyer_wallet", buyer.ID),
		zap.String("merchant_wallet", merchant.ID),
		zap.String("asset", merchant.AssetCode))

	incoming, err := o.createIncomingPayment(ctx, paymentID, p, merchant)
	if err != nil {
		log.Warn("incoming payment setup failed", zap.Error(err))
		return nil, err
	}
	log.Info("incoming payment created", zap.String("incoming_payment_id", incoming.ID))

	quote, err := o.createQuote(ctx, buyer, incoming.ID)
	if err != nil {
		log.Warn("quote setup failed", zap.Error(err))
		return nil, err
	}
	log.Info("quote created",
		zap.String("quote_id", quote.ID),
		zap.String("debit_amount", quote.DebitAmount.Value),
		zap.String("receive_amount", quote.ReceiveAmount.Value))

	clientNonce := o.newNonce()
	callback, err := o.callbackURL(paymentID)
	if err != nil {
		return nil, err
	}
	debit, receive := quote.DebitAmount, quote.ReceiveAmount
	grant, err := o.client.RequestGrant(ctx, buyer.AuthServer, []openpayments.AccessItem{{
		Type:       openpayments.AccessOutgoingPayment,
		Actions:    []openpayments.AccessAction{openpayments.ActionCreate, openpayments.ActionRead},
		Identifier: buyer.ID,
		Limits:     &openpayments.AccessLimits{DebitAmount: &debit, ReceiveAmount: &receive},
	}}, openpayments.NewRedirectInteract(callback, clientNonce))
	if err != nil {
		log.Warn("outgoing payment grant request failed", zap.Error(err))
		return nil, err
	}
	if !grant.IsInteractive() {
		return nil, fmt.Errorf("%w: outgoing payment grant is %s without an interaction", openpayments.ErrInvariantViolation, grant.Kind)
	}

	now := o.now()
	rec := db.PendingPayment{
		ID:                paymentID,
		EventID:           p.EventID,
		EventName:         p.EventName,
		MerchantID:        p.MerchantID,
		Amount:            p.Amount,
		BuyerWallet:       *buyer,
		MerchantWallet:    *merchant,
		IncomingPaymentID: incoming.ID,
		QuoteID:           quote.ID,
		DebitAmount:       quote.DebitAmount,
		Continuation:      grant.Pending.Continue,
		ClientNonce:       clientNonce,
		FinishNonce:       grant.Pending.Interact.Finish,
		AuthorizationURL:  grant.Pending.Interact.Redirect,
		Status:            db.StatusPendingAuthorization,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if o.cfg.TTL > 0 {
		rec.ExpiresAt = now.Add(o.cfg.TTL)
	}
	if err := o.store.Put(rec); err != nil {
		return nil, fmt.Errorf("failed to store pending payment: %w", err)
	}
	log.Info("awaiting buyer authorization", zap.String("authorization_url", rec.AuthorizationURL))

	return &Initiated{
		PaymentID:        paymentID,
		Status:           rec.Status,
		AuthorizationURL: rec.AuthorizationURL,
		ExpiresAt:        rec.ExpiresAt,
	}, nil
}

// resolveWallets fetches both wallet documents concurrently.
func (o *Orchestrator) resolveWallets(ctx context.Context, buyerURI, merchantURI string) (buyer, merchant *openpayments.WalletAddress, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := o.client.Resolve(gctx, buyerURI)
		if err != nil {
			return fmt.Errorf("%w: buyer wallet %s: %w", ErrWalletResolution, buyerURI, err)
		}
		buyer = w
		return nil
	})
	g.Go(func() error {
		w, err := o.client.Resolve(gctx, merchantURI)
		if err != nil {
			return fmt.Errorf("%w: merchant wallet %s: %w", ErrWalletResolution, merchantURI, err)
		}
		merchant = w
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return buyer, merchant, nil
}

func (o *Orchestrator) createIncomingPayment(ctx context.Context, paymentID string, p Purchase, merchant *openpayments.WalletAddress) (*openpayments.IncomingPayment, error) {
	amount, err := openpayments.NewAmount(p.Amount, *merchant)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPurchase, err)
	}
	if amount.Value == "0" {
		return nil, fmt.Errorf("%w: amount %s is below the smallest unit of %s at scale %d",
			ErrInvalidPurchase, p.Amount, merchant.AssetCode, merchant.AssetScale)
	}

	grant, err := o.client.RequestGrant(ctx, merchant.AuthServer, []openpayments.AccessItem{{
		Type:    openpayments.AccessIncomingPayment,
		Actions: []openpayments.AccessAction{openpayments.ActionCreate, openpayments.ActionRead, openpayments.ActionComplete},
	}}, nil)
	if err != nil {
		return nil, err
	}
	if !grant.IsFinalized() {
		return nil, fmt.Errorf("%w: incoming payment grant is %s", openpayments.ErrInvariantViolation, grant.Kind)
	}

	incoming, err := o.client.CreateIncomingPayment(ctx, merchant.ResourceServer, grant.Token(), openpayments.IncomingPaymentRequest{
		WalletAddress:  merchant.ID,
		IncomingAmount: &amount,
		Metadata: map[string]string{
			"paymentId":   paymentID,
			"eventId":     p.EventID,
			"eventName":   p.EventName,
			"merchantId":  p.MerchantID,
			"description": "Ticket purchase: " + p.EventName,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := openpayments.ValidateCreatedIncomingPayment(*incoming); err != nil {
		return nil, err
	}
	return incoming, nil
}

func (o *Orchestrator) createQuote(ctx context.Context, buyer *openpayments.WalletAddress, receiver string) (*openpayments.Quote, error) {
	grant, err := o.client.RequestGrant(ctx, buyer.AuthServer, []openpayments.AccessItem{{
		Type:    openpayments.AccessQuote,
		Actions: []openpayments.AccessAction{openpayments.ActionCreate, openpayments.ActionRead},
	}}, nil)
	if err != nil {
		return nil, err
	}
	if !grant.IsFinalized() {
		return nil, fmt.Errorf("%w: quote grant is %s", openpayments.ErrInvariantViolation, grant.Kind)
	}

	quote, err := o.client.CreateQuote(ctx, buyer.ResourceServer, grant.Token(), openpayments.QuoteRequest{
		WalletAddress: buyer.ID,
		Receiver:      receiver,
		Method:        "ilp",
	})
	if err != nil {
		return nil, err
	}
	if err := openpayments.ValidateQuote(*quote); err != nil {
		return nil, err
	}
	return quote, nil
}

func (o *Orchestrator) callbackURL(paymentID string) (string, error) {
	u, err := url.Parse(o.cfg.CallbackURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid callback url %q", o.cfg.CallbackURL)
	}
	q := u.Query()
	q.Set("paymentId", paymentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
