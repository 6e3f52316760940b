// Package ticket issues the signed access tokens a buyer presents at an event
// once the purchase has settled.
package ticket

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrDisabled     = errors.New("ticketing is not configured")
	ErrInvalid      = errors.New("invalid ticket")
	ErrWrongEvent   = errors.New("ticket is for a different event")
	ErrMissingInput = errors.New("payment id and event id are required")
)

// Claims binds a ticket to one purchase and one event.
type Claims struct {
	EventID string `json:"event"`
	jwt.RegisteredClaims
}

func (c Claims) PaymentID() string {
	return c.Subject
}

// Issuer signs tickets with HS256. A zero-value secret disables it.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for iat/exp and for validation.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Enabled() bool {
	return i != nil && len(i.secret) > 0
}

func (i *Issuer) Issue(paymentID, eventID string) (string, error) {
	if !i.Enabled() {
		return "", ErrDisabled
	}
	if paymentID == "" || eventID == "" {
		return "", ErrMissingInput
	}
	now := i.now()
	claims := Claims{
		EventID: eventID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   paymentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate checks signature, expiry and that the ticket is for eventID.
func (i *Issuer) Validate(tokenString, eventID string) (*Claims, error) {
	if !i.Enabled() {
		return nil, ErrDisabled
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no payment id", ErrInvalid)
	}
	if claims.EventID != eventID {
		return nil, fmt.Errorf("%w: %s", ErrWrongEvent, claims.EventID)
	}
	return &claims, nil
}
