package order_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go-paylink/payment/openpayments"
)

const (
	buyerURI    = "https://wallet.example/buyer"
	merchantURI = "https://wallet.example/merchant"
)

func wallet(uri, name string) *openpayments.WalletAddress {
	return &openpayments.WalletAddress{
		ID:             uri,
		AssetCode:      "USD",
		AssetScale:     2,
		AuthServer:     "https://auth.example/" + name,
		ResourceServer: "https://rs.example/" + name,
	}
}

func finalized(token string) *openpayments.Grant {
	return &openpayments.Grant{
		Kind:      openpayments.GrantFinalized,
		Finalized: &openpayments.FinalizedGrant{AccessToken: openpayments.AccessToken{Value: token}},
	}
}

func pending(redirect string) *openpayments.Grant {
	var cont openpayments.Continuation
	cont.URI = "https://auth.example/buyer/continue/1"
	cont.AccessToken.Value = "continue-token"
	return &openpayments.Grant{
		Kind: openpayments.GrantPending,
		Pending: &openpayments.PendingGrant{
			Interact: &openpayments.Interact{Redirect: redirect, Finish: "finish-nonce"},
			Continue: cont,
		},
	}
}

func outgoing(state openpayments.OutgoingPaymentState, sent string) *openpayments.OutgoingPayment {
	return &openpayments.OutgoingPayment{
		ID:          "https://rs.example/buyer/outgoing-payments/op1",
		DebitAmount: openpayments.Amount{Value: "1010", AssetCode: "USD", AssetScale: 2},
		SentAmount:  openpayments.Amount{Value: sent, AssetCode: "USD", AssetScale: 2},
		State:       state,
	}
}

// fakeClient answers like a well-behaved pair of Open Payments servers.
// Any Func field overrides the default behaviour.
type fakeClient struct {
	mu    sync.Mutex
	calls map[string]int

	grantRequests []openpayments.AccessItem
	interacts     []*openpayments.InteractRequest
	incomingReqs  []openpayments.IncomingPaymentRequest
	quoteReqs     []openpayments.QuoteRequest

	ResolveFunc         func(ctx context.Context, uri string) (*openpayments.WalletAddress, error)
	ContinueGrantFunc   func(ctx context.Context, cont openpayments.Continuation, ref string) (*openpayments.Grant, error)
	CancelGrantFunc     func(ctx context.Context, cont openpayments.Continuation) error
	CreateIncomingFunc  func(req openpayments.IncomingPaymentRequest) (*openpayments.IncomingPayment, error)
	CreateOutgoingFunc  func(attempt int) (*openpayments.OutgoingPayment, error)
	GetOutgoingFunc     func(ctx context.Context, attempt int) (*openpayments.OutgoingPayment, error)
	outgoingGrantResult *openpayments.Grant
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: make(map[string]int)}
}

func (f *fakeClient) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.calls[name]
}

func (f *fakeClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) Resolve(ctx context.Context, uri string) (*openpayments.WalletAddress, error) {
	f.count("Resolve")
	if f.ResolveFunc != nil {
		return f.ResolveFunc(ctx, uri)
	}
	switch uri {
	case buyerURI:
		return wallet(buyerURI, "buyer"), nil
	case merchantURI:
		return wallet(merchantURI, "merchant"), nil
	}
	return nil, &openpayments.RequestError{Kind: openpayments.ErrResolution, Method: "GET", URL: uri, StatusCode: 404}
}

func (f *fakeClient) RequestGrant(ctx context.Context, authServer string, access []openpayments.AccessItem, interact *openpayments.InteractRequest) (*openpayments.Grant, error) {
	f.count("RequestGrant")
	f.mu.Lock()
	f.grantRequests = append(f.grantRequests, access...)
	f.interacts = append(f.interacts, interact)
	f.mu.Unlock()

	switch access[0].Type {
	case openpayments.AccessIncomingPayment:
		return finalized("incoming-token"), nil
	case openpayments.AccessQuote:
		return finalized("quote-token"), nil
	}
	if f.outgoingGrantResult != nil {
		return f.outgoingGrantResult, nil
	}
	return pending("https://auth.example/buyer/interact/1"), nil
}

func (f *fakeClient) ContinueGrant(ctx context.Context, cont openpayments.Continuation, ref string) (*openpayments.Grant, error) {
	f.count("ContinueGrant")
	if f.ContinueGrantFunc != nil {
		return f.ContinueGrantFunc(ctx, cont, ref)
	}
	if cont.Token() != "continue-token" {
		return nil, fmt.Errorf("unexpected continuation token %q", cont.Token())
	}
	return finalized("outgoing-token"), nil
}

func (f *fakeClient) CancelGrant(ctx context.Context, cont openpayments.Continuation) error {
	f.count("CancelGrant")
	if f.CancelGrantFunc != nil {
		return f.CancelGrantFunc(ctx, cont)
	}
	return nil
}

func (f *fakeClient) CreateIncomingPayment(ctx context.Context, resourceServer, accessToken string, req openpayments.IncomingPaymentRequest) (*openpayments.IncomingPayment, error) {
	f.count("CreateIncomingPayment")
	f.mu.Lock()
	f.incomingReqs = append(f.incomingReqs, req)
	f.mu.Unlock()

	if !strings.HasPrefix(resourceServer, "https://rs.example/merchant") || accessToken != "incoming-token" {
		return nil, fmt.Errorf("incoming payment created at %s with %q", resourceServer, accessToken)
	}
	if f.CreateIncomingFunc != nil {
		return f.CreateIncomingFunc(req)
	}
	return &openpayments.IncomingPayment{
		ID:             "https://rs.example/merchant/incoming-payments/ip1",
		WalletAddress:  req.WalletAddress,
		IncomingAmount: req.IncomingAmount,
		ReceivedAmount: openpayments.Amount{Value: "0", AssetCode: req.IncomingAmount.AssetCode, AssetScale: req.IncomingAmount.AssetScale},
		Metadata:       req.Metadata,
	}, nil
}

func (f *fakeClient) CreateQuote(ctx context.Context, resourceServer, accessToken string, req openpayments.QuoteRequest) (*openpayments.Quote, error) {
	f.count("CreateQuote")
	f.mu.Lock()
	f.quoteReqs = append(f.quoteReqs, req)
	f.mu.Unlock()

	if accessToken != "quote-token" {
		return nil, fmt.Errorf("quote created with %q", accessToken)
	}
	return &openpayments.Quote{
		ID:            "https://rs.example/buyer/quotes/q1",
		WalletAddress: req.WalletAddress,
		Receiver:      req.Receiver,
		DebitAmount:   openpayments.Amount{Value: "1010", AssetCode: "USD", AssetScale: 2},
		ReceiveAmount: openpayments.Amount{Value: "1000", AssetCode: "USD", AssetScale: 2},
		Method:        req.Method,
	}, nil
}

func (f *fakeClient) CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken string, req openpayments.OutgoingPaymentRequest) (*openpayments.OutgoingPayment, error) {
	attempt := f.count("CreateOutgoingPayment")
	if accessToken != "outgoing-token" || req.QuoteID != "https://rs.example/buyer/quotes/q1" {
		return nil, fmt.Errorf("outgoing payment created with %q for quote %q", accessToken, req.QuoteID)
	}
	if f.CreateOutgoingFunc != nil {
		return f.CreateOutgoingFunc(attempt)
	}
	return outgoing(openpayments.StateFunding, "0"), nil
}

func (f *fakeClient) GetOutgoingPayment(ctx context.Context, resourceServer, accessToken, id string) (*openpayments.OutgoingPayment, error) {
	attempt := f.count("GetOutgoingPayment")
	if f.GetOutgoingFunc != nil {
		return f.GetOutgoingFunc(ctx, attempt)
	}
	return outgoing(openpayments.StateCompleted, "1010"), nil
}

// states plays back a fixed sequence of poll results, repeating the last.
func states(seq ...openpayments.OutgoingPaymentState) func(context.Context, int) (*openpayments.OutgoingPayment, error) {
	return func(_ context.Context, attempt int) (*openpayments.OutgoingPayment, error) {
		i := attempt - 1
		if i >= len(seq) {
			i = len(seq) - 1
		}
		switch seq[i] {
		case openpayments.StateCompleted:
			return outgoing(seq[i], "1010"), nil
		case openpayments.StateSending:
			return outgoing(seq[i], "500"), nil
		}
		return outgoing(seq[i], "0"), nil
	}
}
