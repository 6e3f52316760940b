package openpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a single HTTP round trip.
const DefaultRequestTimeout = 30 * time.Second

// Signer attaches HTTP message signature headers to an outbound request.
// body is the exact serialized request body, or nil.
type Signer interface {
	SignRequest(req *http.Request, body []byte) error
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(req *http.Request, body []byte) error

func (f SignerFunc) SignRequest(req *http.Request, body []byte) error {
	return f(req, body)
}

// Client talks to wallet address, authorization and resource servers on
// behalf of a single client wallet identity.
type Client struct {
	// ClientWallet is sent as "client" in grant requests.
	ClientWallet string

	// HTTPClient is used for every request. If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// Signer signs authorization and resource server requests. Nil sends them unsigned.
	Signer Signer

	// Timeout is applied to each call independently of the caller's context.
	Timeout time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = hc }
}

func WithSigner(s Signer) ClientOption {
	return func(c *Client) { c.Signer = s }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.Timeout = d }
}

func NewClient(clientWallet string, opts ...ClientOption) *Client {
	c := &Client{
		ClientWallet: clientWallet,
		Timeout:      DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

type call struct {
	kind   error
	method string
	url    string
	token  string
	body   any
	sign   bool
}

type errorBody struct {
	Error       json.RawMessage `json:"error"`
	Message     string          `json:"message"`
	Description string          `json:"description"`
}

// errorCode extracts a GNAP style error code from either
// {"error":"code"} or {"error":{"code":"code","description":"..."}}.
func errorCode(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Error) == 0 {
		return ""
	}
	var code string
	if err := json.Unmarshal(eb.Error, &code); err == nil {
		return code
	}
	var obj struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(eb.Error, &obj); err == nil {
		return obj.Code
	}
	return ""
}

// do performs one JSON round trip and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	fail := func(status int, code, body string, err error) error {
		return &RequestError{Kind: cl.kind, Method: cl.method, URL: cl.url, StatusCode: status, Code: code, Body: body, Err: err}
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var payload []byte
	if cl.body != nil {
		var err error
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return fail(0, "", "", fmt.Errorf("failed to marshal request: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, cl.url, bytes.NewReader(payload))
	if err != nil {
		return fail(0, "", "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "GNAP "+cl.token)
	}
	if cl.sign && c.Signer != nil {
		if err := c.Signer.SignRequest(req, payload); err != nil {
			return fail(0, "", "", fmt.Errorf("failed to sign request: %w", err))
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fail(0, "", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fail(resp.StatusCode, "", "", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, errorCode(body), string(body), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		if errors.Is(err, ErrMalformedGrant) {
			return fail(resp.StatusCode, "", string(body), err)
		}
		return fail(resp.StatusCode, "", string(body), fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
