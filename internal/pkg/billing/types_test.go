package billing

import (
	"testing"

	"github.com/ManuelReschke/Bizdir/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentMode(t *testing.T) {
	m, err := ParsePaymentMode("")
	require.NoError(t, err)
	assert.Equal(t, PaymentModeOneTime, m)

	m, err = ParsePaymentMode(" Subscription ")
	require.NoError(t, err)
	assert.Equal(t, PaymentModeSubscription, m)
	assert.Equal(t, "subscription", m.SessionMode())
	assert.Equal(t, "payment", PaymentModeOneTime.SessionMode())

	_, err = ParsePaymentMode("monthly")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCheckoutMetadataRoundTrip(t *testing.T) {
	in := CheckoutMetadata{
		Flow:            FlowPlanUpgrade,
		UserID:          7,
		BusinessID:      42,
		SelectedPackage: 3,
		PaymentMode:     PaymentModeSubscription,
	}
	md := in.Map()
	assert.Equal(t, "plan_upgrade", md["flow"])
	assert.Equal(t, "42", md["businessId"])

	out, err := ParseCheckoutMetadata(md)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseCheckoutMetadataRejectsUnknownValues(t *testing.T) {
	valid := CheckoutMetadata{Flow: FlowPlanUpgrade, UserID: 1, BusinessID: 2, SelectedPackage: 3, PaymentMode: PaymentModeOneTime}.Map()

	tests := map[string]func(map[string]string){
		"flow":         func(m map[string]string) { m["flow"] = "donation" },
		"missing flow": func(m map[string]string) { delete(m, "flow") },
		"mode":         func(m map[string]string) { m["paymentMode"] = "payment" },
		"empty mode":   func(m map[string]string) { m["paymentMode"] = "" },
		"user":         func(m map[string]string) { m["userId"] = "abc" },
		"zero package": func(m map[string]string) { m["selectedPackage"] = "0" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			md := make(map[string]string, len(valid))
			for k, v := range valid {
				md[k] = v
			}
			mutate(md)
			_, err := ParseCheckoutMetadata(md)
			assert.ErrorIs(t, err, apperr.ErrPaymentVerification)
		})
	}
}

func TestIsPlaceholderSessionID(t *testing.T) {
	assert.True(t, IsPlaceholderSessionID("{CHECKOUT_SESSION_ID}"))
	assert.True(t, IsPlaceholderSessionID("%7BCHECKOUT_SESSION_ID%7D"))
	assert.True(t, IsPlaceholderSessionID("  "))
	assert.False(t, IsPlaceholderSessionID("cs_test_a1b2c3"))
}
