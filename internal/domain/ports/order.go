package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain"
)

// OrderInfo is the server-side truth about an order. Amount and currency
// are never taken from client input. ChannelFee is the marketplace's own
// commission for external-channel orders, zero otherwise.
type OrderInfo struct {
	OrderID    uuid.UUID
	StoreID    uuid.UUID
	Amount     int64
	Currency   string
	Source     domain.OrderSource
	Method     string
	ChannelFee int64
}

// OrderResolver looks orders up in the commerce subsystem.
type OrderResolver interface {
	Resolve(ctx context.Context, orderID uuid.UUID) (*OrderInfo, error)
}
