/*
Package currency provides exchange-rate resolution and currency-aware amounts.

PURPOSE:
  Every staged record carries a native amount in the currency the user spoke,
  plus its equivalent in the user's base accounting currency. This package
  owns the Money shape and the Converter that resolves rates with a layered
  fallback, so previews and commits compute from the same numbers.

RATE CONVENTION:
  An exchange rate is always "native-currency units per 1 base-currency
  unit". baseAmount = nativeAmount / rate. When native == base the rate is
  exactly 1 and baseAmount == nativeAmount, with no lookup performed.

PRECISION:
  All arithmetic uses decimal.Decimal. Floating point never touches money.

SEE ALSO:
  - converter.go: the three-tier rate lookup
  - staging/executor.go: computes committed amounts with one resolved rate
*/
package currency

import "github.com/shopspring/decimal"

// Money is an amount in its native currency together with its base-currency
// equivalent. ExchangeRate follows the native-per-base convention.
type Money struct {
	NativeAmount   decimal.Decimal
	NativeCurrency string
	ExchangeRate   decimal.Decimal
	BaseAmount     decimal.Decimal
}

// NewMoney derives the base-currency equivalent of amount at rate. A
// non-positive rate is treated as identity; the Converter never hands out
// such a rate.
func NewMoney(amount decimal.Decimal, nativeCurrency string, rate decimal.Decimal) Money {
	if !rate.IsPositive() {
		rate = decimal.New(1, 0)
	}
	return Money{
		NativeAmount:   amount,
		NativeCurrency: nativeCurrency,
		ExchangeRate:   rate,
		BaseAmount:     amount.DivRound(rate, 6),
	}
}
