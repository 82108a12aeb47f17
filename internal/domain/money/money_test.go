package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDecimalString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "two decimals", input: "100.00", want: 10000},
		{name: "one decimal", input: "5.5", want: 550},
		{name: "integer", input: "42", want: 4200},
		{name: "negative", input: "-10.25", want: -1025},
		{name: "three decimals rejected", input: "1.234", wantErr: true},
		{name: "garbage rejected", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromDecimalString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Cents())
		})
	}
}

func TestMoney_RoundTrip(t *testing.T) {
	m := FromCents(123456)
	assert.Equal(t, int64(123456), m.Cents())
}

func TestMoney_AddSubAssociative(t *testing.T) {
	a := FromCents(100)
	b := FromCents(250)
	c := FromCents(-75)

	left := a.Add(b).Add(c)
	right := a.Add(b.Add(c))
	assert.True(t, left.Equal(right))

	assert.True(t, a.Sub(b).Sub(c).Equal(a.Sub(b.Add(c))))
}

func TestMoney_Abs(t *testing.T) {
	assert.Equal(t, int64(50), FromCents(-50).Abs().Cents())
	assert.Equal(t, int64(50), FromCents(50).Abs().Cents())
}

func TestMoney_Compare(t *testing.T) {
	assert.Equal(t, -1, FromCents(1).Compare(FromCents(2)))
	assert.Equal(t, 1, FromCents(2).Compare(FromCents(1)))
	assert.Equal(t, 0, FromCents(2).Compare(FromCents(2)))
}

func TestMoney_ZeroPositiveNegative(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.True(t, FromCents(1).IsPositive())
	assert.True(t, FromCents(-1).IsNegative())
}

func TestMoney_Mul(t *testing.T) {
	assert.Equal(t, int64(300), FromCents(100).Mul(3).Cents())
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "100.00", FromCents(10000).String())
	assert.Equal(t, "-1.05", FromCents(-105).String())
	assert.Equal(t, "0.09", FromCents(9).String())
}
