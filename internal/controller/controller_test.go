package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alimikegami/point-of-sales/payment-service/internal/dto"
	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/payment-gateway/wayforpay"
	pkgdto "github.com/alimikegami/point-of-sales/payment-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/errs"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPaymentService struct {
	ack         wayforpay.Ack
	callbackErr error
	redirectURL string
	redirectErr error
	refundErr   error
	gotBody     []byte
	gotForm     url.Values
}

func (s *stubPaymentService) AddOrder(ctx context.Context, req dto.OrderRequest) (dto.OrderResponse, error) {
	return dto.OrderResponse{}, nil
}

func (s *stubPaymentService) GetOrders(ctx context.Context, filter pkgdto.Filter) (pkgdto.Pagination, error) {
	return pkgdto.Pagination{}, nil
}

func (s *stubPaymentService) RefundOrder(ctx context.Context, orderID int64, req dto.RefundRequest) error {
	return s.refundErr
}

func (s *stubPaymentService) HandleServiceCallback(ctx context.Context, body []byte) (wayforpay.Ack, error) {
	s.gotBody = body
	return s.ack, s.callbackErr
}

func (s *stubPaymentService) HandleReturnRedirect(ctx context.Context, form url.Values) (string, error) {
	s.gotForm = form
	return s.redirectURL, s.redirectErr
}

func (s *stubPaymentService) ExpireStalePayments() {}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc {
	return next
}

func setupRouter(svc *stubPaymentService) *echo.Echo {
	e := echo.New()
	CreatePaymentController(e.Group("/api/v1"), svc, passthrough)
	return e
}

func TestServiceCallback_AcksWithHTTP200(t *testing.T) {
	svc := &stubPaymentService{
		ack: wayforpay.Ack{
			OrderReference: "1_w4p_1700000000",
			Status:         "accept",
			Time:           1700000100,
			Signature:      "deadbeef",
		},
	}
	router := setupRouter(svc)

	body := `{"orderReference":"1_w4p_1700000000","transactionStatus":"Approved"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/wayforpay/callback", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte(body), svc.gotBody)

	var ack wayforpay.Ack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "accept", ack.Status)
	assert.Equal(t, "deadbeef", ack.Signature)
}

func TestServiceCallback_ErrorStillHTTP200(t *testing.T) {
	// The gateway reads the body, not the status code; a rejected callback
	// must come back as 200 with a plain-text reason and no signed ack.
	svc := &stubPaymentService{callbackErr: errs.ErrInvalidSignature}
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/wayforpay/callback", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, errs.ErrInvalidSignature.Error(), rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "signature\":")
}

func TestReturnRedirect_Found(t *testing.T) {
	svc := &stubPaymentService{redirectURL: "https://shop.example.com/thank-you?key=k-123"}
	router := setupRouter(svc)

	form := url.Values{}
	form.Set("orderReference", "1_w4p_1700000000")
	form.Set("transactionStatus", "Approved")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/wayforpay/return", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://shop.example.com/thank-you?key=k-123", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "1_w4p_1700000000", svc.gotForm.Get("orderReference"))
}

func TestReturnRedirect_GetMethodAllowed(t *testing.T) {
	svc := &stubPaymentService{redirectURL: "https://shop.example.com/thank-you"}
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/wayforpay/return?orderReference=1_w4p_1700000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRefundOrder_InvalidID(t *testing.T) {
	router := setupRouter(&stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/abc/refunds", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefundOrder_PreconditionMapped(t *testing.T) {
	router := setupRouter(&stubPaymentService{refundErr: errs.ErrRefundPrecondition})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/1/refunds", strings.NewReader(`{"reason":"Customer request"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
