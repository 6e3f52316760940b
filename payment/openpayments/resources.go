package openpayments

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

func resourceURL(resourceServer, path string) string {
	return strings.TrimRight(resourceServer, "/") + path
}

// CreateIncomingPayment creates an incoming payment on the receiver's
// resource server.
func (c *Client) CreateIncomingPayment(ctx context.Context, resourceServer, accessToken string, req IncomingPaymentRequest) (*IncomingPayment, error) {
	var p IncomingPayment
	err := c.do(ctx, call{
		kind:   ErrResourceRequest,
		method: http.MethodPost,
		url:    resourceURL(resourceServer, "/incoming-payments"),
		token:  accessToken,
		body:   req,
		sign:   true,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateQuote prices a payment from the sender's wallet to an incoming payment.
func (c *Client) CreateQuote(ctx context.Context, resourceServer, accessToken string, req QuoteRequest) (*Quote, error) {
	if req.Method == "" {
		req.Method = "ilp"
	}
	var q Quote
	err := c.do(ctx, call{
		kind:   ErrResourceRequest,
		method: http.MethodPost,
		url:    resourceURL(resourceServer, "/quotes"),
		token:  accessToken,
		body:   req,
		sign:   true,
	}, &q)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateOutgoingPayment executes a quote.
func (c *Client) CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken string, req OutgoingPaymentRequest) (*OutgoingPayment, error) {
	var p OutgoingPayment
	err := c.do(ctx, call{
		kind:   ErrResourceRequest,
		method: http.MethodPost,
		url:    resourceURL(resourceServer, "/outgoing-payments"),
		token:  accessToken,
		body:   req,
		sign:   true,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOutgoingPayment fetches an outgoing payment. id may be the full resource
// URL returned on creation or a bare identifier.
func (c *Client) GetOutgoingPayment(ctx context.Context, resourceServer, accessToken, id string) (*OutgoingPayment, error) {
	target := id
	if !validAbsoluteURL(id) {
		target = resourceURL(resourceServer, "/outgoing-payments/"+url.PathEscape(id))
	}
	var p OutgoingPayment
	err := c.do(ctx, call{
		kind:   ErrResourceRequest,
		method: http.MethodGet,
		url:    target,
		token:  accessToken,
		sign:   true,
	}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
