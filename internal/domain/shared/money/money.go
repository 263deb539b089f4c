package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrNegativeAmount   = errors.New("money: amount cannot be negative")
	ErrInvalidAmount    = errors.New("money: invalid amount")
)

// zeroDecimal lists ISO 4217 currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "ISK": true, "JPY": true,
	"KMF": true, "KRW": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// Money keeps amounts in integer minor units to avoid floating point issues.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns an empty amount in the given currency.
func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// Percent returns pct percent of the amount rounded half-up to the nearest minor unit.
func (m Money) Percent(pct int64) Money {
	scaled := m.Amount * pct
	q, r := scaled/100, scaled%100
	switch {
	case r >= 50:
		q++
	case r <= -50:
		q--
	}
	return Money{Amount: q, Currency: m.Currency}
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// SameCurrency reports whether both values carry the same currency code.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency != "" && m.Currency == other.Currency
}

// Major renders the amount in major units with the currency's decimals,
// e.g. 33000 USD becomes "330.00" and 330 JPY stays "330".
func (m Money) Major() string {
	exp := Exponent(m.Currency)
	if exp == 0 {
		return strconv.FormatInt(m.Amount, 10)
	}
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign, amount = "-", -amount
	}
	unit := pow10(exp)
	return fmt.Sprintf("%s%d.%0*d", sign, amount/unit, exp, amount%unit)
}

// String renders the amount as "<major> <currency>", e.g. "330.00 USD".
func (m Money) String() string {
	return m.Major() + " " + m.Currency
}

// ParseMajor reads a major-unit decimal such as "330", "330.5" or "330.00"
// into minor units. More fractional digits than the currency has are rejected.
func ParseMajor(s, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, hasFrac := strings.Cut(s, ".")
	exp := Exponent(currency)
	if whole == "" || (hasFrac && (frac == "" || len(frac) > exp)) {
		return Money{}, fmt.Errorf("%w: %q in %s", ErrInvalidAmount, s, currency)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	var minor int64
	if frac != "" {
		frac += strings.Repeat("0", exp-len(frac))
		if minor, err = strconv.ParseInt(frac, 10, 64); err != nil {
			return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	amount := units*pow10(exp) + minor
	if negative {
		amount = -amount
	}
	return Money{Amount: amount, Currency: currency}, nil
}

func pow10(exp int) int64 {
	n := int64(1)
	for i := 0; i < exp; i++ {
		n *= 10
	}
	return n
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
