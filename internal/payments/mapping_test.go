package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixsoft/tienda-backend/pkg/enums"
)

func TestMapProviderStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status      string
		payment     enums.PaymentState
		fulfillment enums.FulfillmentState
	}{
		{"approved", enums.PaymentStatePaid, enums.FulfillmentStateProcessing},
		{"rejected", enums.PaymentStateRejected, enums.FulfillmentStateCancelled},
		{"pending", enums.PaymentStatePending, enums.FulfillmentStatePending},
		{"in_process", enums.PaymentStatePending, enums.FulfillmentStatePending},
		{"cancelled", enums.PaymentStateCancelled, enums.FulfillmentStateCancelled},
		{"refunded", enums.PaymentStateRefunded, enums.FulfillmentStateCancelled},
		{"charged_back", enums.PaymentStateChargedBack, enums.FulfillmentStateCancelled},
	}
	for _, tc := range cases {
		outcome, ok := MapProviderStatus(tc.status)
		require.True(t, ok, tc.status)
		assert.Equal(t, tc.payment, outcome.PaymentState, tc.status)
		assert.Equal(t, tc.fulfillment, outcome.FulfillmentState, tc.status)
	}

	_, ok := MapProviderStatus("authorized")
	assert.False(t, ok, "unknown status must not map")
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct {
		from, to enums.PaymentState
	}{
		{enums.PaymentStatePending, enums.PaymentStatePaid},
		{enums.PaymentStatePending, enums.PaymentStateRejected},
		{enums.PaymentStatePending, enums.PaymentStateCancelled},
		{enums.PaymentStatePaid, enums.PaymentStateRefunded},
		{enums.PaymentStatePaid, enums.PaymentStateChargedBack},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct {
		from, to enums.PaymentState
	}{
		{enums.PaymentStateRejected, enums.PaymentStatePaid},
		{enums.PaymentStateCancelled, enums.PaymentStatePaid},
		{enums.PaymentStateRefunded, enums.PaymentStatePaid},
		{enums.PaymentStateChargedBack, enums.PaymentStatePending},
		{enums.PaymentStatePaid, enums.PaymentStatePending},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
