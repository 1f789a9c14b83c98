package domain

import (
	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/payment-gateway/wayforpay"
)

// PaymentAction is the order mutation a gateway transaction status maps to.
type PaymentAction int

const (
	// ActionNone means the callback is a replay of a state the order is
	// already in and must not be applied again.
	ActionNone PaymentAction = iota
	ActionMarkPaid
	ActionMarkRefunded
	ActionMarkFailed
	// ActionNote records the status on the order without changing its
	// state; used for statuses the adapter does not act on.
	ActionNote
)

// ResolvePaymentTransition maps an incoming transaction status onto the
// action to apply given the order's current payment status. Callbacks can
// arrive more than once and out of order, so every mutating branch is
// guarded by the current state.
func ResolvePaymentTransition(paymentStatus, transactionStatus string) PaymentAction {
	switch transactionStatus {
	case wayforpay.TransactionApproved:
		if paymentStatus == PaymentStatusPaid {
			return ActionNone
		}
		return ActionMarkPaid
	case wayforpay.TransactionRefunded, wayforpay.TransactionVoided:
		if paymentStatus == PaymentStatusRefunded {
			return ActionNone
		}
		return ActionMarkRefunded
	case wayforpay.TransactionDeclined:
		if paymentStatus == PaymentStatusFailed {
			return ActionNone
		}
		return ActionMarkFailed
	case wayforpay.TransactionExpired:
		// An expiry notice can be delivered after the payment already
		// succeeded in another transaction; it only fails an order that
		// is still waiting for one.
		if paymentStatus != PaymentStatusPending {
			return ActionNone
		}
		return ActionMarkFailed
	default:
		return ActionNote
	}
}
