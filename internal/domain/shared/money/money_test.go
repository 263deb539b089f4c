package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizesCurrency(t *testing.T) {
	m, err := New(100, " usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", m.Currency)

	_, err = New(100, "US")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestAddRejectsMismatchedCurrencies(t *testing.T) {
	_, err := Must(1, "USD").Add(Must(1, "IDR"))
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	sum, err := Must(1, "USD").Add(Must(2, "USD"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Amount)
}

func TestPercentRoundsHalfUp(t *testing.T) {
	cases := map[int64]int64{
		300: 30,
		105: 11, // 10.5
		104: 10, // 10.4
		5:   1,  // 0.5
		4:   0,
	}
	for amount, want := range cases {
		assert.Equal(t, want, Must(amount, "USD").Percent(10).Amount, "amount %d", amount)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "330.00 USD", Must(33000, "USD").String())
	assert.Equal(t, "330 JPY", Must(330, "JPY").String())
}

func TestMajorUsesCurrencyExponent(t *testing.T) {
	assert.Equal(t, "0.05", Must(5, "USD").Major())
	assert.Equal(t, "-12.30", Must(-1230, "EUR").Major())
	assert.Equal(t, "150000.00", Must(15000000, "IDR").Major())
	assert.Equal(t, "1500", Must(1500, "jpy").Major())
}

func TestParseMajor(t *testing.T) {
	cases := []struct {
		in       string
		currency string
		want     int64
	}{
		{"330", "USD", 33000},
		{"330.5", "USD", 33050},
		{"330.05", "usd", 33005},
		{"0.99", "EUR", 99},
		{"1500", "JPY", 1500},
	}
	for _, tc := range cases {
		m, err := ParseMajor(tc.in, tc.currency)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, m.Amount, tc.in)
	}

	for _, bad := range []string{"", "1.234", "1.", "abc", "1.5x"} {
		_, err := ParseMajor(bad, "USD")
		require.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
	_, err := ParseMajor("1.5", "JPY")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMajorRoundTrip(t *testing.T) {
	for _, amount := range []int64{0, 1, 99, 100, 33000, 123456789} {
		m := Must(amount, "USD")
		back, err := ParseMajor(m.Major(), "USD")
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
}
