package openpayments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	deniedCodes   = map[string]bool{"user_denied": true, "request_denied": true, "access_denied": true}
	notReadyCodes = map[string]bool{"too_fast": true, "request_pending": true, "pending": true}
)

// classifyGrantError re-tags an authorization server refusal by its GNAP code.
func classifyGrantError(err error) error {
	var re *RequestError
	if !errors.As(err, &re) || re.StatusCode == 0 {
		return err
	}
	switch {
	case deniedCodes[re.Code]:
		re.Kind = ErrGrantDenied
	case notReadyCodes[re.Code]:
		re.Kind = ErrGrantNotReady
	}
	return re
}

// RequestGrant asks authServer for a grant covering access. With a nil
// interact the server is expected to answer with a finalized grant; with one,
// a pending grant carrying a redirect.
func (c *Client) RequestGrant(ctx context.Context, authServer string, access []AccessItem, interact *InteractRequest) (*Grant, error) {
	if len(access) == 0 {
		return nil, fmt.Errorf("%w: empty access list", ErrGrantRequest)
	}

	var body GrantRequest
	body.AccessToken.Access = access
	body.Client = c.ClientWallet
	body.Interact = interact

	var g Grant
	err := c.do(ctx, call{kind: ErrGrantRequest, method: http.MethodPost, url: authServer, body: body, sign: true}, &g)
	if err != nil {
		return nil, classifyGrantError(err)
	}
	return &g, nil
}

type continueRequest struct {
	InteractRef string `json:"interact_ref,omitempty"`
}

// ContinueGrant resumes a pending grant after out-of-band approval. A
// response still lacking an access token yields ErrGrantNotReady.
func (c *Client) ContinueGrant(ctx context.Context, cont Continuation, interactRef string) (*Grant, error) {
	if cont.URI == "" || cont.Token() == "" {
		return nil, fmt.Errorf("%w: incomplete continuation descriptor", ErrGrantRequest)
	}

	var g Grant
	err := c.do(ctx, call{
		kind:   ErrGrantRequest,
		method: http.MethodPost,
		url:    cont.URI,
		token:  cont.Token(),
		body:   continueRequest{InteractRef: interactRef},
		sign:   true,
	}, &g)
	if err != nil {
		return nil, classifyGrantError(err)
	}
	if !g.IsFinalized() {
		return nil, &RequestError{Kind: ErrGrantNotReady, Method: http.MethodPost, URL: cont.URI, Err: fmt.Errorf("continuation returned a %s grant", g.Kind)}
	}
	return &g, nil
}

// CancelGrant revokes a grant that will not be continued.
func (c *Client) CancelGrant(ctx context.Context, cont Continuation) error {
	if cont.URI == "" || cont.Token() == "" {
		return fmt.Errorf("%w: incomplete continuation descriptor", ErrGrantRequest)
	}
	err := c.do(ctx, call{kind: ErrGrantRequest, method: http.MethodDelete, url: cont.URI, token: cont.Token(), sign: true}, nil)
	return classifyGrantError(err)
}
