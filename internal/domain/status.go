package domain

// PaymentStatus is the lifecycle state of a PaymentIntent.
type PaymentStatus string

const (
	PaymentStatusCreated           PaymentStatus = "CREATED"
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusAuthorized        PaymentStatus = "AUTHORIZED"
	PaymentStatusPaid              PaymentStatus = "PAID"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusCanceled          PaymentStatus = "CANCELED"
)

// IsTerminal reports whether no further transitions are legal.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusRefunded, PaymentStatusFailed, PaymentStatusCanceled:
		return true
	}
	return false
}

// PaymentEventType is an observed fact fed into the state machine, either
// normalized from a provider webhook or generated internally.
type PaymentEventType string

const (
	EventProviderAccepted   PaymentEventType = "provider.accepted"
	EventProviderInitFailed PaymentEventType = "provider.init_failed"
	EventPaymentAuthorized  PaymentEventType = "payment.authorized"
	EventPaymentPaid        PaymentEventType = "payment.paid"
	EventPaymentFailed      PaymentEventType = "payment.failed"
	EventPaymentCanceled    PaymentEventType = "payment.canceled"
	EventPartiallyRefunded  PaymentEventType = "payment.partially_refunded"
	EventFullyRefunded      PaymentEventType = "payment.refunded"
)

// transitions is the single source of truth for legal (state, event) pairs.
// Any combination not present here is an INVALID_TRANSITION.
var transitions = map[PaymentStatus]map[PaymentEventType]PaymentStatus{
	PaymentStatusCreated: {
		EventProviderAccepted:   PaymentStatusPending,
		EventProviderInitFailed: PaymentStatusFailed,
		EventPaymentCanceled:    PaymentStatusCanceled,
	},
	PaymentStatusPending: {
		EventPaymentAuthorized: PaymentStatusAuthorized,
		EventPaymentPaid:       PaymentStatusPaid,
		EventPaymentFailed:     PaymentStatusFailed,
		EventPaymentCanceled:   PaymentStatusCanceled,
	},
	PaymentStatusAuthorized: {
		EventPaymentPaid:     PaymentStatusPaid,
		EventPaymentFailed:   PaymentStatusFailed,
		EventPaymentCanceled: PaymentStatusCanceled,
	},
	PaymentStatusPaid: {
		EventPartiallyRefunded: PaymentStatusPartiallyRefunded,
		EventFullyRefunded:     PaymentStatusRefunded,
	},
	PaymentStatusPartiallyRefunded: {
		EventPartiallyRefunded: PaymentStatusPartiallyRefunded,
		EventFullyRefunded:     PaymentStatusRefunded,
	},
}

// NextStatus resolves the transition table for (current, event). The second
// return value is false for illegal pairs; callers decide whether that is an
// error (command path) or an ignorable duplicate (webhook path).
func NextStatus(current PaymentStatus, event PaymentEventType) (PaymentStatus, bool) {
	byEvent, ok := transitions[current]
	if !ok {
		return current, false
	}
	next, ok := byEvent[event]
	if !ok {
		return current, false
	}
	return next, true
}

// CanTransition reports whether the (current, event) pair is legal.
func CanTransition(current PaymentStatus, event PaymentEventType) bool {
	_, ok := NextStatus(current, event)
	return ok
}
