package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name    string
		current PaymentStatus
		event   PaymentEventType
		want    PaymentStatus
		ok      bool
	}{
		{"created_accepted_goes_pending", PaymentStatusCreated, EventProviderAccepted, PaymentStatusPending, true},
		{"created_init_failure_goes_failed", PaymentStatusCreated, EventProviderInitFailed, PaymentStatusFailed, true},
		{"created_cancel", PaymentStatusCreated, EventPaymentCanceled, PaymentStatusCanceled, true},
		{"pending_authorized", PaymentStatusPending, EventPaymentAuthorized, PaymentStatusAuthorized, true},
		{"pending_paid_skips_authorized", PaymentStatusPending, EventPaymentPaid, PaymentStatusPaid, true},
		{"pending_failed", PaymentStatusPending, EventPaymentFailed, PaymentStatusFailed, true},
		{"authorized_paid", PaymentStatusAuthorized, EventPaymentPaid, PaymentStatusPaid, true},
		{"authorized_canceled", PaymentStatusAuthorized, EventPaymentCanceled, PaymentStatusCanceled, true},
		{"paid_partial_refund", PaymentStatusPaid, EventPartiallyRefunded, PaymentStatusPartiallyRefunded, true},
		{"paid_full_refund", PaymentStatusPaid, EventFullyRefunded, PaymentStatusRefunded, true},
		{"partial_refund_again", PaymentStatusPartiallyRefunded, EventPartiallyRefunded, PaymentStatusPartiallyRefunded, true},
		{"partial_then_full_refund", PaymentStatusPartiallyRefunded, EventFullyRefunded, PaymentStatusRefunded, true},

		{"paid_cannot_fail", PaymentStatusPaid, EventPaymentFailed, PaymentStatusPaid, false},
		{"paid_rejects_stale_paid_webhook", PaymentStatusPaid, EventPaymentPaid, PaymentStatusPaid, false},
		{"refunded_is_terminal", PaymentStatusRefunded, EventPartiallyRefunded, PaymentStatusRefunded, false},
		{"failed_is_terminal", PaymentStatusFailed, EventPaymentPaid, PaymentStatusFailed, false},
		{"canceled_is_terminal", PaymentStatusCanceled, EventPaymentPaid, PaymentStatusCanceled, false},
		{"created_cannot_pay_directly", PaymentStatusCreated, EventPaymentPaid, PaymentStatusCreated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := NextStatus(tt.current, tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestPaymentStatusIsTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentStatusRefunded, PaymentStatusFailed, PaymentStatusCanceled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	live := []PaymentStatus{
		PaymentStatusCreated, PaymentStatusPending, PaymentStatusAuthorized,
		PaymentStatusPaid, PaymentStatusPartiallyRefunded,
	}
	for _, s := range live {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	events := []PaymentEventType{
		EventProviderAccepted, EventProviderInitFailed, EventPaymentAuthorized,
		EventPaymentPaid, EventPaymentFailed, EventPaymentCanceled,
		EventPartiallyRefunded, EventFullyRefunded,
	}
	for _, s := range []PaymentStatus{PaymentStatusRefunded, PaymentStatusFailed, PaymentStatusCanceled} {
		for _, e := range events {
			assert.False(t, CanTransition(s, e), "terminal %s accepted %s", s, e)
		}
	}
}

func TestPayoutStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from PayoutStatus
		to   PayoutStatus
		ok   bool
	}{
		{"requested_to_processing", PayoutStatusRequested, PayoutStatusProcessing, true},
		{"requested_to_failed", PayoutStatusRequested, PayoutStatusFailed, true},
		{"processing_to_succeeded", PayoutStatusProcessing, PayoutStatusSucceeded, true},
		{"processing_to_failed", PayoutStatusProcessing, PayoutStatusFailed, true},
		{"requested_cannot_succeed_directly", PayoutStatusRequested, PayoutStatusSucceeded, false},
		{"succeeded_is_terminal", PayoutStatusSucceeded, PayoutStatusFailed, false},
		{"failed_is_terminal", PayoutStatusFailed, PayoutStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}
