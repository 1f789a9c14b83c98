package service

import (
	"context"
	"net/url"

	"github.com/alimikegami/point-of-sales/payment-service/internal/dto"
	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/payment-gateway/wayforpay"
	pkgdto "github.com/alimikegami/point-of-sales/payment-service/pkg/dto"
)

type PaymentService interface {
	AddOrder(ctx context.Context, req dto.OrderRequest) (resp dto.OrderResponse, err error)
	GetOrders(ctx context.Context, filter pkgdto.Filter) (response pkgdto.Pagination, err error)
	RefundOrder(ctx context.Context, orderID int64, req dto.RefundRequest) (err error)
	HandleServiceCallback(ctx context.Context, body []byte) (ack wayforpay.Ack, err error)
	HandleReturnRedirect(ctx context.Context, form url.Values) (redirectURL string, err error)
	ExpireStalePayments()
}
