package repository

import (
	"context"

	"github.com/alimikegami/point-of-sales/payment-service/internal/domain"
	pkgdto "github.com/alimikegami/point-of-sales/payment-service/pkg/dto"
)

type OrderRepository interface {
	HandleTrx(ctx context.Context, fn func(ctx context.Context, repo OrderRepository) error) error

	AddOrder(ctx context.Context, data domain.Order) (id int64, err error)
	AddOrderDetails(ctx context.Context, data []domain.OrderDetail) (err error)
	GetOrderByID(ctx context.Context, id int64) (data domain.Order, err error)
	GetOrderDetailsByOrderID(ctx context.Context, orderID int64) (data []domain.OrderDetail, err error)
	GetOrders(ctx context.Context, filter pkgdto.Filter) (data []domain.Order, err error)

	MarkOrderPaid(ctx context.Context, id int64, transactionRef string, paidAt int64) (err error)
	MarkOrderRefunded(ctx context.Context, id int64) (err error)
	MarkOrderFailed(ctx context.Context, id int64, reason string) (err error)
	ExpireOrder(ctx context.Context, id int64) (err error)

	AppendOrderNote(ctx context.Context, orderID int64, note string) (err error)
}
