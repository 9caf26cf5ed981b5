package intent

import (
	"time"

	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
)

// paidPostings builds the ledger transaction recorded when an intent reaches
// PAID. Own-store sales split gross into net payoutable plus the platform
// fee; external-channel sales carry the channel's commission and no platform
// fee.
func paidPostings(intent *domain.PaymentIntent, at time.Time) *domain.LedgerTransaction {
	entries := []domain.LedgerEntry{
		{ID: uuid.New(), Account: domain.AccountPSPInTransit, Direction: domain.Debit, Amount: intent.Amount},
		{ID: uuid.New(), Account: domain.AccountPayoutableBalance, Direction: domain.Credit, Amount: intent.NetPayoutable()},
	}

	if intent.OrderSource == domain.OrderSourceExternalChannel {
		if intent.ChannelFee > 0 {
			entries = append(entries, domain.LedgerEntry{
				ID: uuid.New(), Account: domain.AccountChannelCommission, Direction: domain.Credit, Amount: intent.ChannelFee,
			})
		}
	} else if intent.Commission.Fee > 0 {
		entries = append(entries, domain.LedgerEntry{
			ID: uuid.New(), Account: domain.AccountPlatformCommission, Direction: domain.Credit, Amount: intent.Commission.Fee,
		})
	}

	intentID := intent.ID
	return &domain.LedgerTransaction{
		ID:          uuid.New(),
		StoreID:     intent.StoreID,
		Name:        "payment_paid",
		OrderSource: intent.OrderSource,
		IntentID:    &intentID,
		Currency:    intent.Currency,
		Entries:     entries,
		CreatedAt:   at,
	}
}
