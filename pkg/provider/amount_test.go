package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aboudou-cto-bloko/pixelmart-sub001/pkg/enums"
)

func TestToProviderAmountXOF(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		want  int64
	}{
		{"exact francs", 25000, 250},
		{"rounds down", 25049, 250},
		{"rounds up", 25050, 251},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToProviderAmount(tt.cents, enums.CurrencyXOF)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToProviderAmountUSDKeepsCents(t *testing.T) {
	got, err := ToProviderAmount(12345, enums.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), got)
}

func TestToProviderAmountRejectsNegative(t *testing.T) {
	_, err := ToProviderAmount(-1, enums.CurrencyXOF)
	require.Error(t, err)
}

func TestFromProviderAmount(t *testing.T) {
	got, err := FromProviderAmount(250, enums.CurrencyXOF)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), got)

	got, err = FromProviderAmount(12345, enums.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), got)
}

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"event":"transaction.approved"}`)
	sig := SignPayload("whsec_test", payload)
	assert.True(t, VerifySignature("whsec_test", payload, sig))
	assert.False(t, VerifySignature("whsec_test", payload, sig[:len(sig)-2]+"ff"))
	assert.False(t, VerifySignature("whsec_other", payload, sig))
	assert.False(t, VerifySignature("whsec_test", payload, ""))
}
