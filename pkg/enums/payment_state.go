package enums

import "fmt"

// PaymentState tracks how far a payment has progressed. The persisted values
// are the Spanish literals the storefront and reporting queries depend on.
type PaymentState string

const (
	PaymentStatePending     PaymentState = "pendiente"
	PaymentStatePaid        PaymentState = "pagado"
	PaymentStateRejected    PaymentState = "rechazado"
	PaymentStateCancelled   PaymentState = "cancelado"
	PaymentStateRefunded    PaymentState = "reembolsado"
	PaymentStateChargedBack PaymentState = "contracargado"
)

var validPaymentStates = []PaymentState{
	PaymentStatePending,
	PaymentStatePaid,
	PaymentStateRejected,
	PaymentStateCancelled,
	PaymentStateRefunded,
	PaymentStateChargedBack,
}

// String implements fmt.Stringer.
func (p PaymentState) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentState.
func (p PaymentState) IsValid() bool {
	for _, candidate := range validPaymentStates {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further payment transitions are allowed.
func (p PaymentState) IsTerminal() bool {
	switch p {
	case PaymentStateRejected, PaymentStateCancelled, PaymentStateRefunded, PaymentStateChargedBack:
		return true
	}
	return false
}

// ParsePaymentState converts raw input into a PaymentState.
func ParsePaymentState(value string) (PaymentState, error) {
	for _, candidate := range validPaymentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment state %q", value)
}
