package enums

import "fmt"

// FulfillmentState tracks the physical lifecycle of an order.
type FulfillmentState string

const (
	FulfillmentStatePending    FulfillmentState = "pendiente"
	FulfillmentStateProcessing FulfillmentState = "procesando"
	FulfillmentStateShipped    FulfillmentState = "enviado"
	FulfillmentStateDelivered  FulfillmentState = "entregado"
	FulfillmentStateCancelled  FulfillmentState = "cancelado"
)

var validFulfillmentStates = []FulfillmentState{
	FulfillmentStatePending,
	FulfillmentStateProcessing,
	FulfillmentStateShipped,
	FulfillmentStateDelivered,
	FulfillmentStateCancelled,
}

// String implements fmt.Stringer.
func (f FulfillmentState) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentState.
func (f FulfillmentState) IsValid() bool {
	for _, candidate := range validFulfillmentStates {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfillmentState converts raw input into a FulfillmentState.
func ParseFulfillmentState(value string) (FulfillmentState, error) {
	for _, candidate := range validFulfillmentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment state %q", value)
}
