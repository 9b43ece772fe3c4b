package gold

import "strings"

// CurrencyConverter applies a fixed USD-based exchange rate. Rates are
// configuration, not market data; the oracle may update the INR rate when a
// provider returns a fresher one.
type CurrencyConverter struct {
	DefaultCurrency string
	USDToINRRate    float64
}

// Amount is a converted monetary value tagged with the currency it ended up in.
type Amount struct {
	Value    float64
	Currency string
}

// FromUSD converts a USD amount into the target currency. An unknown currency
// falls back to USD rather than failing, matching the quoting contract that a
// price request never errors on currency alone.
func (c CurrencyConverter) FromUSD(amountUSD float64, targetCurrency string) Amount {
	currency := strings.ToUpper(strings.TrimSpace(targetCurrency))
	if currency == "" {
		currency = c.DefaultCurrency
	}
	switch currency {
	case "USD":
		return Amount{Value: amountUSD, Currency: "USD"}
	case "INR":
		return Amount{Value: RoundMoney(amountUSD * c.USDToINRRate), Currency: "INR"}
	}
	return Amount{Value: amountUSD, Currency: "USD"}
}

// ToUSD normalizes an amount in the given currency back to USD.
func (c CurrencyConverter) ToUSD(amount float64, currency string) float64 {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "INR":
		return amount / c.USDToINRRate
	default:
		return amount
	}
}
