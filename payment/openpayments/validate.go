package openpayments

import (
	"math/big"
	"net/url"
)

func parseValue(value string) (*big.Int, bool) {
	if value == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// ValidateAmount checks that an amount is a non-negative integer in a named
// asset with a sane scale.
func ValidateAmount(name string, a Amount) error {
	if _, ok := parseValue(a.Value); !ok {
		return invariantf("%s value %q is not a non-negative integer", name, a.Value)
	}
	if a.AssetCode == "" {
		return invariantf("%s has no asset code", name)
	}
	if a.AssetScale < 0 || a.AssetScale > 255 {
		return invariantf("%s asset scale %d out of range", name, a.AssetScale)
	}
	return nil
}

// CompareValues returns -1, 0 or 1 like big.Int.Cmp. Both values must be valid.
func CompareValues(a, b Amount) int {
	x, _ := parseValue(a.Value)
	y, _ := parseValue(b.Value)
	if x == nil || y == nil {
		return 0
	}
	return x.Cmp(y)
}

func isZero(a Amount) bool {
	v, ok := parseValue(a.Value)
	return ok && v.Sign() == 0
}

func validAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ValidateWalletAddress checks a resolved wallet address document.
func ValidateWalletAddress(w WalletAddress) error {
	if !validAbsoluteURL(w.ID) {
		return invariantf("wallet address id %q is not an absolute URL", w.ID)
	}
	if !validAbsoluteURL(w.AuthServer) {
		return invariantf("wallet address %s has invalid authServer %q", w.ID, w.AuthServer)
	}
	if !validAbsoluteURL(w.ResourceServer) {
		return invariantf("wallet address %s has invalid resourceServer %q", w.ID, w.ResourceServer)
	}
	if w.AssetCode == "" {
		return invariantf("wallet address %s has no asset code", w.ID)
	}
	if w.AssetScale < 0 || w.AssetScale > 255 {
		return invariantf("wallet address %s asset scale %d out of range", w.ID, w.AssetScale)
	}
	return nil
}

// ValidateIncomingPayment checks the invariants that hold for an incoming
// payment at any time.
func ValidateIncomingPayment(p IncomingPayment) error {
	if p.ID == "" {
		return invariantf("incoming payment has no id")
	}
	if err := ValidateAmount("receivedAmount", p.ReceivedAmount); err != nil {
		return err
	}
	if p.IncomingAmount != nil {
		if err := ValidateAmount("incomingAmount", *p.IncomingAmount); err != nil {
			return err
		}
		if !p.IncomingAmount.SameAsset(p.ReceivedAmount) {
			return invariantf("incoming amount asset %s/%d does not match received amount asset %s/%d",
				p.IncomingAmount.AssetCode, p.IncomingAmount.AssetScale,
				p.ReceivedAmount.AssetCode, p.ReceivedAmount.AssetScale)
		}
	}
	return nil
}

// ValidateCreatedIncomingPayment additionally requires a freshly created
// payment to have received nothing and not be completed.
func ValidateCreatedIncomingPayment(p IncomingPayment) error {
	if err := ValidateIncomingPayment(p); err != nil {
		return err
	}
	if !isZero(p.ReceivedAmount) {
		return invariantf("received amount of new incoming payment is %s, expected 0", p.ReceivedAmount.Value)
	}
	if p.Completed {
		return invariantf("new incoming payment %s is already completed", p.ID)
	}
	return nil
}

// ValidateQuote checks that both amounts are well formed and, when they are
// in the same asset, that the debit covers the receive amount.
func ValidateQuote(q Quote) error {
	if q.ID == "" {
		return invariantf("quote has no id")
	}
	if err := ValidateAmount("debitAmount", q.DebitAmount); err != nil {
		return err
	}
	if err := ValidateAmount("receiveAmount", q.ReceiveAmount); err != nil {
		return err
	}
	if q.DebitAmount.SameAsset(q.ReceiveAmount) && CompareValues(q.DebitAmount, q.ReceiveAmount) < 0 {
		return invariantf("quote debit amount %s is less than receive amount %s", q.DebitAmount.Value, q.ReceiveAmount.Value)
	}
	return nil
}

// ValidateOutgoingPayment checks the sent/debit consistency of an outgoing payment.
func ValidateOutgoingPayment(p OutgoingPayment) error {
	if p.ID == "" {
		return invariantf("outgoing payment has no id")
	}
	if err := ValidateAmount("debitAmount", p.DebitAmount); err != nil {
		return err
	}
	if err := ValidateAmount("sentAmount", p.SentAmount); err != nil {
		return err
	}
	if !p.DebitAmount.SameAsset(p.SentAmount) {
		return invariantf("asset code or asset scale of debit amount does not match sent amount")
	}
	cmp := CompareValues(p.SentAmount, p.DebitAmount)
	if cmp > 0 {
		return invariantf("amount sent %s is larger than debit amount %s", p.SentAmount.Value, p.DebitAmount.Value)
	}
	if cmp == 0 && p.Failed {
		return invariantf("debit amount matches sent amount but payment failed")
	}
	return nil
}

// EffectiveState returns the reported state, or derives one from failed and
// sentAmount for servers that omit it.
func (p OutgoingPayment) EffectiveState() OutgoingPaymentState {
	if p.State != "" {
		return p.State
	}
	if p.Failed {
		return StateFailed
	}
	if !isZero(p.DebitAmount) && CompareValues(p.SentAmount, p.DebitAmount) == 0 {
		return StateCompleted
	}
	if isZero(p.SentAmount) {
		return StateFunding
	}
	return StateSending
}
