package openpayments

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// NormalizeWalletURL turns a payment pointer ($host/path) into its https URL.
// Anything else is returned trimmed but otherwise untouched.
func NormalizeWalletURL(uri string) string {
	uri = strings.TrimSpace(uri)
	if strings.HasPrefix(uri, "$") {
		return "https://" + strings.TrimPrefix(uri, "$")
	}
	return uri
}

// Resolve fetches the wallet address document for walletURI. The result is
// never cached.
func (c *Client) Resolve(ctx context.Context, walletURI string) (*WalletAddress, error) {
	u := NormalizeWalletURL(walletURI)
	if !validAbsoluteURL(u) {
		return nil, &RequestError{Kind: ErrResolution, Method: http.MethodGet, URL: walletURI, Err: fmt.Errorf("not an absolute URL")}
	}

	var wa WalletAddress
	if err := c.do(ctx, call{kind: ErrResolution, method: http.MethodGet, url: u}, &wa); err != nil {
		return nil, err
	}
	if err := ValidateWalletAddress(wa); err != nil {
		return nil, &RequestError{Kind: ErrResolution, Method: http.MethodGet, URL: u, Err: err}
	}
	return &wa, nil
}
