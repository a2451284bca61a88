package payments

import "github.com/pixsoft/tienda-backend/pkg/enums"

// Outcome is the pair of states a provider status maps onto.
type Outcome struct {
	PaymentState     enums.PaymentState
	FulfillmentState enums.FulfillmentState
}

// providerStatusMap is the fixed translation from MercadoPago payment
// statuses to local order states.
var providerStatusMap = map[string]Outcome{
	"approved":     {enums.PaymentStatePaid, enums.FulfillmentStateProcessing},
	"rejected":     {enums.PaymentStateRejected, enums.FulfillmentStateCancelled},
	"in_process":   {enums.PaymentStatePending, enums.FulfillmentStatePending},
	"pending":      {enums.PaymentStatePending, enums.FulfillmentStatePending},
	"cancelled":    {enums.PaymentStateCancelled, enums.FulfillmentStateCancelled},
	"refunded":     {enums.PaymentStateRefunded, enums.FulfillmentStateCancelled},
	"charged_back": {enums.PaymentStateChargedBack, enums.FulfillmentStateCancelled},
}

// MapProviderStatus resolves a provider status into local states.
func MapProviderStatus(status string) (Outcome, bool) {
	outcome, ok := providerStatusMap[status]
	return outcome, ok
}

// CanTransition reports whether the payment state machine allows moving from
// one state to another. Terminal states absorb everything.
func CanTransition(from, to enums.PaymentState) bool {
	switch from {
	case enums.PaymentStatePending:
		switch to {
		case enums.PaymentStatePaid, enums.PaymentStateRejected, enums.PaymentStateCancelled:
			return true
		}
	case enums.PaymentStatePaid:
		switch to {
		case enums.PaymentStateRefunded, enums.PaymentStateChargedBack:
			return true
		}
	}
	return false
}
