package openpayments

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a major-unit amount into the integer value string used
// on the wire: round(amount * 10^scale).
func ToMinorUnits(amount decimal.Decimal, scale int) (string, error) {
	if scale < 0 {
		return "", fmt.Errorf("invalid asset scale %d", scale)
	}
	if amount.IsNegative() {
		return "", fmt.Errorf("amount cannot be negative, got %s", amount)
	}
	return amount.Shift(int32(scale)).Round(0).String(), nil
}

// FromMinorUnits converts a wire value back into major units.
func FromMinorUnits(value string, scale int) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount value %q: %w", value, err)
	}
	return d.Shift(int32(-scale)), nil
}

// NewAmount builds a wire Amount in the asset of wallet.
func NewAmount(amount decimal.Decimal, wallet WalletAddress) (Amount, error) {
	value, err := ToMinorUnits(amount, wallet.AssetScale)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: value, AssetCode: wallet.AssetCode, AssetScale: wallet.AssetScale}, nil
}
