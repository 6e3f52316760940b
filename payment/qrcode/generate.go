package qrcode

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// AuthorizationPNG encodes the consent URL of a pending purchase so a buyer
// can open it on another device.
func AuthorizationPNG(authorizationURL string, size int) ([]byte, error) {
	u, err := url.Parse(authorizationURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid authorization url %q", authorizationURL)
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(authorizationURL, qrcode.Medium, size)
}
