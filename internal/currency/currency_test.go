package currency_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gw2trader/tradepost/internal/currency"
	"github.com/gw2trader/tradepost/internal/domain"
)

func TestToCopper(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		unit    currency.Unit
		want    int64
		wantErr error
	}{
		{
			name:  "copper is identity",
			value: "1234",
			unit:  currency.UnitCopper,
			want:  1234,
		},
		{
			name:  "copper truncates fraction",
			value: "1234.9",
			unit:  currency.UnitCopper,
			want:  1234,
		},
		{
			name:  "gold scales by 10000",
			value: "2.5",
			unit:  currency.UnitGold,
			want:  25000,
		},
		{
			name:  "fractional gold below one copper truncates",
			value: "0.00009",
			unit:  currency.UnitGold,
			want:  0,
		},
		{
			name:  "negative values keep sign",
			value: "-1.5",
			unit:  currency.UnitGold,
			want:  -15000,
		},
		{
			name:    "unknown unit rejected",
			value:   "1",
			unit:    currency.Unit("silver"),
			wantErr: domain.ErrInvalidUnit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := decimal.NewFromString(tt.value)
			require.NoError(t, err)

			got, err := currency.ToCopper(v, tt.unit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGold(t *testing.T) {
	assert.Equal(t, 2.5, currency.Gold(25000))
	assert.Equal(t, 0.0001, currency.Gold(1))
}

func TestFormatGold(t *testing.T) {
	assert.Equal(t, "1g 23s 45c", currency.FormatGold(12345))
	assert.Equal(t, "23s 45c", currency.FormatGold(2345))
	assert.Equal(t, "45c", currency.FormatGold(45))
	assert.Equal(t, "0c", currency.FormatGold(0))
	assert.Equal(t, "-1g 0s 1c", currency.FormatGold(-10001))
}
