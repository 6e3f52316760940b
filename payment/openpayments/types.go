// Package openpayments is a client for the Open Payments wallet, authorization
// and resource server APIs used by the marketplace checkout flow.
package openpayments

import (
	"encoding/json"
	"fmt"
	"time"
)

// Amount is a value in the minor units of an asset. Value is a non-negative
// integer encoded as a string.
type Amount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

// SameAsset reports whether a and b are denominated in the same asset.
func (a Amount) SameAsset(b Amount) bool {
	return a.AssetCode == b.AssetCode && a.AssetScale == b.AssetScale
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s (scale %d)", a.Value, a.AssetCode, a.AssetScale)
}

type WalletAddress struct {
	ID             string `json:"id"`
	PublicName     string `json:"publicName,omitempty"`
	AssetCode      string `json:"assetCode"`
	AssetScale     int    `json:"assetScale"`
	AuthServer     string `json:"authServer"`
	ResourceServer string `json:"resourceServer"`
}

type AccessType string

const (
	AccessIncomingPayment AccessType = "incoming-payment"
	AccessOutgoingPayment AccessType = "outgoing-payment"
	AccessQuote           AccessType = "quote"
)

type AccessAction string

const (
	ActionCreate   AccessAction = "create"
	ActionRead     AccessAction = "read"
	ActionReadAll  AccessAction = "read-all"
	ActionComplete AccessAction = "complete"
	ActionList     AccessAction = "list"
	ActionListAll  AccessAction = "list-all"
)

type AccessLimits struct {
	DebitAmount   *Amount `json:"debitAmount,omitempty"`
	ReceiveAmount *Amount `json:"receiveAmount,omitempty"`
}

// AccessItem is one entry of a grant request's access list.
type AccessItem struct {
	Type       AccessType     `json:"type"`
	Actions    []AccessAction `json:"actions"`
	Identifier string         `json:"identifier,omitempty"`
	Limits     *AccessLimits  `json:"limits,omitempty"`
}

type InteractFinish struct {
	Method string `json:"method"`
	URI    string `json:"uri"`
	Nonce  string `json:"nonce"`
}

// InteractRequest asks the authorization server for a redirect-based consent.
type InteractRequest struct {
	Start  []string       `json:"start"`
	Finish InteractFinish `json:"finish"`
}

// NewRedirectInteract builds the only interaction mode this client uses:
// start with a redirect, finish by redirecting back to callbackURI.
func NewRedirectInteract(callbackURI, nonce string) *InteractRequest {
	return &InteractRequest{
		Start: []string{"redirect"},
		Finish: InteractFinish{
			Method: "redirect",
			URI:    callbackURI,
			Nonce:  nonce,
		},
	}
}

type GrantRequest struct {
	AccessToken struct {
		Access []AccessItem `json:"access"`
	} `json:"access_token"`
	Client   string           `json:"client"`
	Interact *InteractRequest `json:"interact,omitempty"`
}

type AccessToken struct {
	Value     string       `json:"value"`
	Manage    string       `json:"manage,omitempty"`
	ExpiresIn int          `json:"expires_in,omitempty"`
	Access    []AccessItem `json:"access,omitempty"`
}

// Continuation is what a client needs to resume or cancel a grant.
type Continuation struct {
	URI         string `json:"uri"`
	AccessToken struct {
		Value string `json:"value"`
	} `json:"access_token"`
	Wait int `json:"wait,omitempty"`
}

// Token returns the continuation access token.
func (c Continuation) Token() string {
	return c.AccessToken.Value
}

type Interact struct {
	Redirect string `json:"redirect"`
	Finish   string `json:"finish"`
}

// GrantKind discriminates the Grant variants.
type GrantKind int

const (
	GrantPending GrantKind = iota + 1
	GrantFinalized
)

func (k GrantKind) String() string {
	switch k {
	case GrantPending:
		return "pending"
	case GrantFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

type PendingGrant struct {
	Interact *Interact   `json:"interact,omitempty"`
	Continue Continuation `json:"continue"`
}

type FinalizedGrant struct {
	AccessToken AccessToken   `json:"access_token"`
	Continue    *Continuation `json:"continue,omitempty"`
}

// Grant is either a PendingGrant or a FinalizedGrant. Kind is set by
// UnmarshalJSON and exactly one of Pending/Finalized is non-nil.
type Grant struct {
	Kind      GrantKind
	Pending   *PendingGrant
	Finalized *FinalizedGrant
}

type grantWire struct {
	AccessToken *AccessToken  `json:"access_token"`
	Interact    *Interact     `json:"interact"`
	Continue    *Continuation `json:"continue"`
}

// UnmarshalJSON classifies the response once. A body carrying both an
// access token and an interaction, or neither an access token nor a
// continuation, is rejected.
func (g *Grant) UnmarshalJSON(data []byte) error {
	var w grantWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch {
	case w.AccessToken != nil && w.Interact != nil:
		return fmt.Errorf("%w: response has both access_token and interact", ErrMalformedGrant)
	case w.AccessToken != nil:
		if w.AccessToken.Value == "" {
			return fmt.Errorf("%w: empty access_token value", ErrMalformedGrant)
		}
		*g = Grant{Kind: GrantFinalized, Finalized: &FinalizedGrant{AccessToken: *w.AccessToken, Continue: w.Continue}}
	case w.Continue != nil:
		if w.Continue.URI == "" || w.Continue.Token() == "" {
			return fmt.Errorf("%w: incomplete continue descriptor", ErrMalformedGrant)
		}
		*g = Grant{Kind: GrantPending, Pending: &PendingGrant{Interact: w.Interact, Continue: *w.Continue}}
	default:
		return fmt.Errorf("%w: response has neither access_token nor continue", ErrMalformedGrant)
	}
	return nil
}

func (g Grant) MarshalJSON() ([]byte, error) {
	switch g.Kind {
	case GrantFinalized:
		return json.Marshal(g.Finalized)
	case GrantPending:
		return json.Marshal(g.Pending)
	default:
		return nil, fmt.Errorf("%w: cannot encode grant of kind %s", ErrMalformedGrant, g.Kind)
	}
}

// IsFinalized reports whether the grant carries a usable access token.
func (g *Grant) IsFinalized() bool {
	return g != nil && g.Kind == GrantFinalized && g.Finalized != nil
}

// IsInteractive reports whether the grant is pending an end-user redirect.
func (g *Grant) IsInteractive() bool {
	return g != nil && g.Kind == GrantPending && g.Pending != nil && g.Pending.Interact != nil
}

// Token returns the access token of a finalized grant, or "".
func (g *Grant) Token() string {
	if !g.IsFinalized() {
		return ""
	}
	return g.Finalized.AccessToken.Value
}

type IncomingPaymentRequest struct {
	WalletAddress  string            `json:"walletAddress"`
	IncomingAmount *Amount           `json:"incomingAmount,omitempty"`
	ExpiresAt      *time.Time        `json:"expiresAt,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type IncomingPayment struct {
	ID             string            `json:"id"`
	WalletAddress  string            `json:"walletAddress"`
	IncomingAmount *Amount           `json:"incomingAmount,omitempty"`
	ReceivedAmount Amount            `json:"receivedAmount"`
	Completed      bool              `json:"completed"`
	ExpiresAt      *time.Time        `json:"expiresAt,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

type QuoteRequest struct {
	WalletAddress string `json:"walletAddress"`
	Receiver      string `json:"receiver"`
	Method        string `json:"method"`
}

type Quote struct {
	ID            string     `json:"id"`
	WalletAddress string     `json:"walletAddress"`
	Receiver      string     `json:"receiver"`
	DebitAmount   Amount     `json:"debitAmount"`
	ReceiveAmount Amount     `json:"receiveAmount"`
	Method        string     `json:"method"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type OutgoingPaymentRequest struct {
	WalletAddress string            `json:"walletAddress"`
	QuoteID       string            `json:"quoteId"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type OutgoingPaymentState string

const (
	StateFunding   OutgoingPaymentState = "FUNDING"
	StateSending   OutgoingPaymentState = "SENDING"
	StateCompleted OutgoingPaymentState = "COMPLETED"
	StateFailed    OutgoingPaymentState = "FAILED"
)

// Terminal reports whether no further state transition is expected.
func (s OutgoingPaymentState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type OutgoingPayment struct {
	ID            string               `json:"id"`
	WalletAddress string               `json:"walletAddress"`
	QuoteID       string               `json:"quoteId,omitempty"`
	Receiver      string               `json:"receiver"`
	DebitAmount   Amount               `json:"debitAmount"`
	ReceiveAmount *Amount              `json:"receiveAmount,omitempty"`
	SentAmount    Amount               `json:"sentAmount"`
	Failed        bool                 `json:"failed"`
	State         OutgoingPaymentState `json:"state,omitempty"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}
