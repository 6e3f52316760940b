package openpayments_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-paylink/payment/openpayments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestGrantUnmarshal(t *testing.T) {
	t.Run("Finalized", func(t *testing.T) {
		var g openpayments.Grant
		require.NoError(t, json.Unmarshal([]byte(`{"access_token":{"value":"tok","manage":"https://as/token/1"},"continue":{"uri":"https://as/continue/1","access_token":{"value":"c"}}}`), &g))
		require.Equal(t, openpayments.GrantFinalized, g.Kind)
		require.True(t, g.IsFinalized())
		require.False(t, g.IsInteractive())
		require.Equal(t, "tok", g.Token())
	})

	t.Run("Pending", func(t *testing.T) {
		var g openpayments.Grant
		require.NoError(t, json.Unmarshal([]byte(`{"interact":{"redirect":"https://as/interact/1","finish":"fn"},"continue":{"uri":"https://as/continue/1","access_token":{"value":"c"},"wait":5}}`), &g))
		require.Equal(t, openpayments.GrantPending, g.Kind)
		require.True(t, g.IsInteractive())
		require.Equal(t, "", g.Token())
		require.Equal(t, "https://as/interact/1", g.Pending.Interact.Redirect)
		require.Equal(t, "c", g.Pending.Continue.Token())
	})

	t.Run("Both", func(t *testing.T) {
		var g openpayments.Grant
		err := json.Unmarshal([]byte(`{"access_token":{"value":"tok"},"interact":{"redirect":"x"},"continue":{"uri":"u","access_token":{"value":"c"}}}`), &g)
		require.ErrorIs(t, err, openpayments.ErrMalformedGrant)
	})

	t.Run("Neither", func(t *testing.T) {
		var g openpayments.Grant
		require.ErrorIs(t, json.Unmarshal([]byte(`{}`), &g), openpayments.ErrMalformedGrant)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		in := `{"interact":{"redirect":"https://as/interact/1","finish":"fn"},"continue":{"uri":"https://as/continue/1","access_token":{"value":"c"}}}`
		var g openpayments.Grant
		require.NoError(t, json.Unmarshal([]byte(in), &g))
		out, err := json.Marshal(g)
		require.NoError(t, err)
		var back openpayments.Grant
		require.NoError(t, json.Unmarshal(out, &back))
		require.Equal(t, g, back)
	})
}

func TestResolve(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/alice":
			writeJSON(t, w, http.StatusOK, openpayments.WalletAddress{
				ID:             srv.URL + "/alice",
				AssetCode:      "USD",
				AssetScale:     2,
				AuthServer:     srv.URL + "/auth",
				ResourceServer: srv.URL + "/rs",
			})
		case "/broken":
			writeJSON(t, w, http.StatusOK, map[string]any{"id": srv.URL + "/broken"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := openpayments.NewClient(srv.URL + "/platform")

	wa, err := c.Resolve(context.Background(), srv.URL+"/alice")
	require.NoError(t, err)
	require.Equal(t, "USD", wa.AssetCode)
	require.Equal(t, 2, wa.AssetScale)
	require.Equal(t, srv.URL+"/auth", wa.AuthServer)

	_, err = c.Resolve(context.Background(), srv.URL+"/missing")
	require.ErrorIs(t, err, openpayments.ErrResolution)
	var re *openpayments.RequestError
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusNotFound, re.StatusCode)
	require.Equal(t, http.MethodGet, re.Method)
	require.Equal(t, srv.URL+"/missing", re.URL)

	_, err = c.Resolve(context.Background(), srv.URL+"/broken")
	require.ErrorIs(t, err, openpayments.ErrResolution)
	require.ErrorIs(t, err, openpayments.ErrInvariantViolation)

	_, err = c.Resolve(context.Background(), "not a url")
	require.ErrorIs(t, err, openpayments.ErrResolution)
}

func TestNormalizeWalletURL(t *testing.T) {
	assert.Equal(t, "https://ilp.example/alice", openpayments.NormalizeWalletURL("$ilp.example/alice"))
	assert.Equal(t, "https://ilp.example/alice", openpayments.NormalizeWalletURL(" https://ilp.example/alice "))
}

func TestRequestGrant(t *testing.T) {
	var signed int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "sig", r.Header.Get("Signature"))

		var body openpayments.GrantRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "https://wallet.example/platform", body.Client)
		require.Len(t, body.AccessToken.Access, 1)

		if body.Interact != nil {
			require.Equal(t, []string{"redirect"}, body.Interact.Start)
			require.Equal(t, "nonce-1", body.Interact.Finish.Nonce)
			require.NotNil(t, body.AccessToken.Access[0].Limits)
			writeJSON(t, w, http.StatusOK, map[string]any{
				"interact": map[string]any{"redirect": "https://auth.example/interact/1", "finish": "fin"},
				"continue": map[string]any{"uri": "https://auth.example/continue/1", "access_token": map[string]any{"value": "cont"}},
			})
			return
		}
		writeJSON(t, w, http.StatusOK, map[string]any{
			"access_token": map[string]any{"value": "incoming-token"},
		})
	}))
	defer srv.Close()

	signer := openpayments.SignerFunc(func(r *http.Request, body []byte) error {
		signed++
		r.Header.Set("Signature", "sig")
		return nil
	})
	c := openpayments.NewClient("https://wallet.example/platform", openpayments.WithSigner(signer), openpayments.WithTimeout(5*time.Second))

	g, err := c.RequestGrant(context.Background(), srv.URL, []openpayments.AccessItem{{
		Type:    openpayments.AccessIncomingPayment,
		Actions: []openpayments.AccessAction{openpayments.ActionCreate, openpayments.ActionRead, openpayments.ActionComplete},
	}}, nil)
	require.NoError(t, err)
	require.True(t, g.IsFinalized())
	require.Equal(t, "incoming-token", g.Token())

	debit := usd("1020")
	g, err = c.RequestGrant(context.Background(), srv.URL, []openpayments.AccessItem{{
		Type:    openpayments.AccessOutgoingPayment,
		Actions: []openpayments.AccessAction{openpayments.ActionCreate, openpayments.ActionRead},
		Limits:  &openpayments.AccessLimits{DebitAmount: &debit},
	}}, openpayments.NewRedirectInteract("https://shop.example/callback", "nonce-1"))
	require.NoError(t, err)
	require.True(t, g.IsInteractive())
	require.Equal(t, "https://auth.example/interact/1", g.Pending.Interact.Redirect)
	require.Equal(t, 2, signed)

	_, err = c.RequestGrant(context.Background(), srv.URL, nil, nil)
	require.ErrorIs(t, err, openpayments.ErrGrantRequest)
}

func TestContinueGrant(t *testing.T) {
	var mode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GNAP cont-token", r.Header.Get("Authorization"))
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ref-1", body["interact_ref"])

		switch mode {
		case "ok":
			writeJSON(t, w, http.StatusOK, map[string]any{"access_token": map[string]any{"value": "outgoing-token"}})
		case "pending":
			writeJSON(t, w, http.StatusOK, map[string]any{"continue": map[string]any{"uri": "https://as/continue/1", "access_token": map[string]any{"value": "c2"}}})
		case "denied":
			writeJSON(t, w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": "request_denied", "description": "grant interaction not approved"}})
		case "too_fast":
			writeJSON(t, w, http.StatusBadRequest, map[string]any{"error": "too_fast"})
		default:
			writeJSON(t, w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": "invalid_continuation"}})
		}
	}))
	defer srv.Close()

	c := openpayments.NewClient("https://wallet.example/platform")
	var cont openpayments.Continuation
	cont.URI = srv.URL + "/continue/1"
	cont.AccessToken.Value = "cont-token"

	mode = "ok"
	g, err := c.ContinueGrant(context.Background(), cont, "ref-1")
	require.NoError(t, err)
	require.Equal(t, "outgoing-token", g.Token())

	mode = "pending"
	_, err = c.ContinueGrant(context.Background(), cont, "ref-1")
	require.ErrorIs(t, err, openpayments.ErrGrantNotReady)

	mode = "too_fast"
	_, err = c.ContinueGrant(context.Background(), cont, "ref-1")
	require.ErrorIs(t, err, openpayments.ErrGrantNotReady)

	mode = "denied"
	_, err = c.ContinueGrant(context.Background(), cont, "ref-1")
	require.ErrorIs(t, err, openpayments.ErrGrantDenied)

	mode = "other"
	_, err = c.ContinueGrant(context.Background(), cont, "ref-1")
	require.ErrorIs(t, err, openpayments.ErrGrantRequest)
	var re *openpayments.RequestError
	require.True(t, errors.As(err, &re))
	require.Equal(t, "invalid_continuation", re.Code)

	require.NoError(t, c.CancelGrant(context.Background(), cont))

	_, err = c.ContinueGrant(context.Background(), openpayments.Continuation{}, "ref-1")
	require.ErrorIs(t, err, openpayments.ErrGrantRequest)
}

func TestResourceCalls(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GNAP rs-token", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/incoming-payments":
			var req openpayments.IncomingPaymentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "evt-1", req.Metadata["eventId"])
			writeJSON(t, w, http.StatusCreated, openpayments.IncomingPayment{
				ID:             srv.URL + "/incoming-payments/ip1",
				WalletAddress:  req.WalletAddress,
				IncomingAmount: req.IncomingAmount,
				ReceivedAmount: usd("0"),
			})
		case r.Method == http.MethodPost && r.URL.Path == "/quotes":
			var req openpayments.QuoteRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "ilp", req.Method)
			writeJSON(t, w, http.StatusCreated, openpayments.Quote{ID: srv.URL + "/quotes/q1", Receiver: req.Receiver, DebitAmount: usd("1010"), ReceiveAmount: usd("1000")})
		case r.Method == http.MethodPost && r.URL.Path == "/outgoing-payments":
			var req openpayments.OutgoingPaymentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			writeJSON(t, w, http.StatusCreated, openpayments.OutgoingPayment{ID: srv.URL + "/outgoing-payments/op1", QuoteID: req.QuoteID, DebitAmount: usd("1010"), SentAmount: usd("0"), State: openpayments.StateFunding})
		case r.Method == http.MethodGet && r.URL.Path == "/outgoing-payments/op1":
			writeJSON(t, w, http.StatusOK, openpayments.OutgoingPayment{ID: srv.URL + "/outgoing-payments/op1", DebitAmount: usd("1010"), SentAmount: usd("1010"), State: openpayments.StateCompleted})
		default:
			writeJSON(t, w, http.StatusForbidden, map[string]any{"message": "forbidden"})
		}
	}))
	defer srv.Close()

	c := openpayments.NewClient("https://wallet.example/platform")
	ctx := context.Background()
	amount := usd("1000")

	ip, err := c.CreateIncomingPayment(ctx, srv.URL+"/", "rs-token", openpayments.IncomingPaymentRequest{
		WalletAddress:  "https://wallet.example/merchant",
		IncomingAmount: &amount,
		Metadata:       map[string]string{"eventId": "evt-1"},
	})
	require.NoError(t, err)
	require.NoError(t, openpayments.ValidateCreatedIncomingPayment(*ip))

	q, err := c.CreateQuote(ctx, srv.URL, "rs-token", openpayments.QuoteRequest{WalletAddress: "https://wallet.example/buyer", Receiver: ip.ID})
	require.NoError(t, err)
	require.Equal(t, ip.ID, q.Receiver)

	op, err := c.CreateOutgoingPayment(ctx, srv.URL, "rs-token", openpayments.OutgoingPaymentRequest{WalletAddress: "https://wallet.example/buyer", QuoteID: q.ID})
	require.NoError(t, err)
	require.Equal(t, openpayments.StateFunding, op.State)

	byURL, err := c.GetOutgoingPayment(ctx, srv.URL, "rs-token", op.ID)
	require.NoError(t, err)
	require.Equal(t, openpayments.StateCompleted, byURL.State)

	byID, err := c.GetOutgoingPayment(ctx, srv.URL, "rs-token", "op1")
	require.NoError(t, err)
	require.Equal(t, byURL.ID, byID.ID)

	_, err = c.GetOutgoingPayment(ctx, srv.URL, "rs-token", "nope")
	require.ErrorIs(t, err, openpayments.ErrResourceRequest)
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := openpayments.NewClient("https://wallet.example/platform", openpayments.WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := c.Resolve(context.Background(), srv.URL+"/slow")
	require.ErrorIs(t, err, openpayments.ErrResolution)
	require.Less(t, time.Since(start), time.Second)
}
