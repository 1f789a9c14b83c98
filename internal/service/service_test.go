package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/alimikegami/point-of-sales/payment-service/config"
	"github.com/alimikegami/point-of-sales/payment-service/internal/domain"
	"github.com/alimikegami/point-of-sales/payment-service/internal/dto"
	circuitbreaker "github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/circuit-breaker"
	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/payment-gateway/wayforpay"
	"github.com/alimikegami/point-of-sales/payment-service/internal/repository"
	pkgdto "github.com/alimikegami/point-of-sales/payment-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/errs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderRepository struct {
	orders     map[int64]*domain.Order
	details    map[int64][]domain.OrderDetail
	notes      map[int64][]string
	nextID     int64
	paidCalls  int
	refundCall int
	failCalls  int
}

func newFakeOrderRepository() *fakeOrderRepository {
	return &fakeOrderRepository{
		orders:  map[int64]*domain.Order{},
		details: map[int64][]domain.OrderDetail{},
		notes:   map[int64][]string{},
		nextID:  1,
	}
}

func (r *fakeOrderRepository) HandleTrx(ctx context.Context, fn func(ctx context.Context, repo repository.OrderRepository) error) error {
	return fn(ctx, r)
}

func (r *fakeOrderRepository) AddOrder(ctx context.Context, data domain.Order) (int64, error) {
	id := r.nextID
	r.nextID++
	data.ID = id
	r.orders[id] = &data
	return id, nil
}

func (r *fakeOrderRepository) AddOrderDetails(ctx context.Context, data []domain.OrderDetail) error {
	for _, detail := range data {
		r.details[detail.OrderID] = append(r.details[detail.OrderID], detail)
	}
	return nil
}

func (r *fakeOrderRepository) GetOrderByID(ctx context.Context, id int64) (domain.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, errs.ErrOrderNotFound
	}
	return *order, nil
}

func (r *fakeOrderRepository) GetOrderDetailsByOrderID(ctx context.Context, orderID int64) ([]domain.OrderDetail, error) {
	return r.details[orderID], nil
}

func (r *fakeOrderRepository) GetOrders(ctx context.Context, filter pkgdto.Filter) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range r.orders {
		if filter.PaymentStatus != "" && order.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.Expired && order.CreatedAt >= filter.ExpiredBefore {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (r *fakeOrderRepository) MarkOrderPaid(ctx context.Context, id int64, transactionRef string, paidAt int64) error {
	order := r.orders[id]
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil
	}
	order.PaymentStatus = domain.PaymentStatusPaid
	order.TransactionRef = &transactionRef
	order.PaidAt = &paidAt
	r.paidCalls++
	return nil
}

func (r *fakeOrderRepository) MarkOrderRefunded(ctx context.Context, id int64) error {
	order := r.orders[id]
	if order.PaymentStatus == domain.PaymentStatusRefunded {
		return nil
	}
	order.PaymentStatus = domain.PaymentStatusRefunded
	r.refundCall++
	return nil
}

func (r *fakeOrderRepository) MarkOrderFailed(ctx context.Context, id int64, reason string) error {
	order := r.orders[id]
	if order.PaymentStatus == domain.PaymentStatusFailed {
		return nil
	}
	order.PaymentStatus = domain.PaymentStatusFailed
	order.FailureReason = &reason
	r.failCalls++
	return nil
}

func (r *fakeOrderRepository) ExpireOrder(ctx context.Context, id int64) error {
	order := r.orders[id]
	if order.PaymentStatus != domain.PaymentStatusPending {
		return nil
	}
	reason := "Payment expired"
	order.PaymentStatus = domain.PaymentStatusFailed
	order.FailureReason = &reason
	r.failCalls++
	return nil
}

func (r *fakeOrderRepository) AppendOrderNote(ctx context.Context, orderID int64, note string) error {
	r.notes[orderID] = append(r.notes[orderID], note)
	return nil
}

type fakeEventWriter struct {
	messages []kafka.Message
}

func (w *fakeEventWriter) WriteMessages(msgs ...kafka.Message) (int, error) {
	w.messages = append(w.messages, msgs...)
	return len(msgs), nil
}

func (w *fakeEventWriter) eventTypes() []string {
	var out []string
	for _, msg := range w.messages {
		var event dto.KafkaMessage
		if err := json.Unmarshal(msg.Value, &event); err == nil {
			out = append(out, event.EventType)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		WayforpayConfig: config.WayforpayConfig{
			MerchantAccount: wayforpay.TestMerchantAccount,
			MerchantSecret:  wayforpay.TestMerchantSecret,
			MerchantDomain:  "example.com",
			ReferenceSuffix: "w4p",
			PublicBaseURL:   "https://shop.example.com",
			ReturnURL:       "https://shop.example.com/thank-you",
			Language:        "ua",
		},
		PaymentTTL: 3600,
	}
}

func testService(repo repository.OrderRepository, writer eventWriter, payURL, apiURL string) (PaymentService, *wayforpay.Signer) {
	conf := testConfig()
	signer := wayforpay.CreateSigner(conf.WayforpayConfig.MerchantAccount, conf.WayforpayConfig.MerchantSecret)
	client := wayforpay.CreateClient(signer, conf.WayforpayConfig.MerchantDomain, payURL, apiURL, circuitbreaker.CreateCircuitBreaker("test"))
	return CreatePaymentService(repo, client, writer, conf), signer
}

func pendingOrder(repo *fakeOrderRepository, amount float64) int64 {
	id, _ := repo.AddOrder(context.Background(), domain.Order{
		OrderKey:      "k-123",
		Amount:        amount,
		Currency:      "UAH",
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     1700000000,
	})
	return id
}

func signedCallbackBody(t *testing.T, signer *wayforpay.Signer, payload wayforpay.Payload) []byte {
	t.Helper()
	payload["merchantSignature"] = signer.Sign(payload, wayforpay.SignatureKeysServiceCallback)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func approvedCallback(orderID int64) wayforpay.Payload {
	return wayforpay.Payload{
		"merchantAccount":   wayforpay.TestMerchantAccount,
		"orderReference":    wayforpay.BuildOrderReference(orderID, "w4p", 1700000000),
		"amount":            "149.99",
		"currency":          "UAH",
		"authCode":          "541963",
		"cardPan":           "44****1902",
		"transactionStatus": wayforpay.TransactionApproved,
		"reasonCode":        "1100",
	}
}

func TestHandleServiceCallback_Approved(t *testing.T) {
	repo := newFakeOrderRepository()
	writer := &fakeEventWriter{}
	svc, signer := testService(repo, writer, "", "")
	orderID := pendingOrder(repo, 149.99)

	body := signedCallbackBody(t, signer, approvedCallback(orderID))

	ack, err := svc.HandleServiceCallback(context.Background(), body)
	require.NoError(t, err)

	reference := wayforpay.BuildOrderReference(orderID, "w4p", 1700000000)
	assert.Equal(t, reference, ack.OrderReference)
	assert.Equal(t, "accept", ack.Status)

	// The ack signature has to verify against the merchant secret.
	expected := signer.BuildAck(reference, ack.Time)
	assert.Equal(t, expected.Signature, ack.Signature)

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	require.NotNil(t, order.TransactionRef)
	assert.Equal(t, reference, *order.TransactionRef)

	assert.Len(t, repo.notes[orderID], 1)
	assert.Equal(t, []string{EventOrderPaid}, writer.eventTypes())
}

func TestHandleServiceCallback_ApprovedReplayIsIdempotent(t *testing.T) {
	repo := newFakeOrderRepository()
	writer := &fakeEventWriter{}
	svc, signer := testService(repo, writer, "", "")
	orderID := pendingOrder(repo, 149.99)

	body := signedCallbackBody(t, signer, approvedCallback(orderID))

	_, err := svc.HandleServiceCallback(context.Background(), body)
	require.NoError(t, err)

	// The gateway redelivers until acked; a replay must ack again without
	// re-applying the transition.
	ack, err := svc.HandleServiceCallback(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "accept", ack.Status)

	assert.Equal(t, 1, repo.paidCalls)
	assert.Len(t, repo.notes[orderID], 1)
	assert.Len(t, writer.eventTypes(), 1)
}

func TestHandleServiceCallback_StaleExpiryAfterApproved(t *testing.T) {
	repo := newFakeOrderRepository()
	writer := &fakeEventWriter{}
	svc, signer := testService(repo, writer, "", "")
	orderID := pendingOrder(repo, 149.99)

	_, err := svc.HandleServiceCallback(context.Background(), signedCallbackBody(t, signer, approvedCallback(orderID)))
	require.NoError(t, err)

	expired := approvedCallback(orderID)
	expired["transactionStatus"] = wayforpay.TransactionExpired

	ack, err := svc.HandleServiceCallback(context.Background(), signedCallbackBody(t, signer, expired))
	require.NoError(t, err)
	assert.Equal(t, "accept", ack.Status)

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, 0, repo.failCalls)
}

func TestHandleServiceCallback_Declined(t *testing.T) {
	repo := newFakeOrderRepository()
	writer := &fakeEventWriter{}
	svc, signer := testService(repo, writer, "", "")
	orderID := pendingOrder(repo, 149.99)

	declined := approvedCallback(orderID)
	declined["transactionStatus"] = wayforpay.TransactionDeclined
	declined["reasonCode"] = "1111"
	declined["reason"] = "Card limit exceeded"

	ack, err := svc.HandleServiceCallback(context.Background(), signedCallbackBody(t, signer, declined))
	require.NoError(t, err)
	assert.Equal(t, "accept", ack.Status)

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, order.PaymentStatus)
	require.NotNil(t, order.FailureReason)
	assert.Equal(t, "1111 - Card limit exceeded", *order.FailureReason)
	assert.Equal(t, []string{EventOrderPaymentFailed}, writer.eventTypes())
}

func TestHandleServiceCallback_TamperedAmount(t *testing.T) {
	repo := newFakeOrderRepository()
	writer := &fakeEventWriter{}
	svc, signer := testService(repo, writer, "", "")
	orderID := pendingOrder(repo, 149.99)

	payload := approvedCallback(orderID)
	payload["merchantSignature"] = signer.Sign(payload, wayforpay.SignatureKeysServiceCallback)
	payload["amount"] = "1.00"
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	_, err = svc.HandleServiceCallback(context.Background(), body)
	assert.ErrorIs(t, err, errs.ErrInvalidSignature)

	order, getErr := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Empty(t, repo.notes[orderID])
	assert.Empty(t, writer.eventTypes())
}

func TestHandleServiceCallback_UnknownOrder(t *testing.T) {
	repo := newFakeOrderRepository()
	svc, signer := testService(repo, &fakeEventWriter{}, "", "")

	_, err := svc.HandleServiceCallback(context.Background(), signedCallbackBody(t, signer, approvedCallback(999)))
	assert.ErrorIs(t, err, errs.ErrOrderNotFound)
}

func TestHandleServiceCallback_MalformedBody(t *testing.T) {
	repo := newFakeOrderRepository()
	svc, _ := testService(repo, &fakeEventWriter{}, "", "")

	_, err := svc.HandleServiceCallback(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestHandleServiceCallback_UnknownStatusOnlyNotes(t *testing.T) {
	repo := newFakeOrderRepository()
	writer := &fakeEventWriter{}
	svc, signer := testService(repo, writer, "", "")
	orderID := pendingOrder(repo, 149.99)

	payload := approvedCallback(orderID)
	payload["transactionStatus"] = wayforpay.TransactionRefundInProcessing

	ack, err := svc.HandleServiceCallback(context.Background(), signedCallbackBody(t, signer, payload))
	require.NoError(t, err)
	assert.Equal(t, "accept", ack.Status)

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Len(t, repo.notes[orderID], 1)
	assert.Empty(t, writer.eventTypes())
}

func TestHandleReturnRedirect(t *testing.T) {
	repo := newFakeOrderRepository()
	svc, signer := testService(repo, &fakeEventWriter{}, "", "")
	orderID := pendingOrder(repo, 149.99)

	payload := approvedCallback(orderID)
	payload["merchantSignature"] = signer.Sign(payload, wayforpay.SignatureKeysServiceCallback)

	form := url.Values{}
	for key, value := range payload {
		form.Set(key, value.(string))
	}

	redirectURL, err := svc.HandleReturnRedirect(context.Background(), form)
	require.NoError(t, err)

	parsed, err := url.Parse(redirectURL)
	require.NoError(t, err)
	assert.Equal(t, "/thank-you", parsed.Path)
	assert.Equal(t, "k-123", parsed.Query().Get("key"))

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
}

func TestHandleReturnRedirect_EmptyForm(t *testing.T) {
	repo := newFakeOrderRepository()
	svc, _ := testService(repo, &fakeEventWriter{}, "", "")

	_, err := svc.HandleReturnRedirect(context.Background(), url.Values{})
	assert.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestRefundOrder_RequiresTransactionRef(t *testing.T) {
	repo := newFakeOrderRepository()
	svc, _ := testService(repo, &fakeEventWriter{}, "", "")
	orderID := pendingOrder(repo, 149.99)

	err := svc.RefundOrder(context.Background(), orderID, dto.RefundRequest{})
	assert.ErrorIs(t, err, errs.ErrRefundPrecondition)
}

func TestRefundOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"transactionStatus": wayforpay.TransactionRefunded})
	}))
	defer server.Close()

	repo := newFakeOrderRepository()
	writer := &fakeEventWriter{}
	svc, _ := testService(repo, writer, "", server.URL)
	orderID := pendingOrder(repo, 149.99)

	transactionRef := wayforpay.BuildOrderReference(orderID, "w4p", 1700000000)
	require.NoError(t, repo.MarkOrderPaid(context.Background(), orderID, transactionRef, 1700000100))

	err := svc.RefundOrder(context.Background(), orderID, dto.RefundRequest{Reason: "Customer request"})
	require.NoError(t, err)

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, order.PaymentStatus)
	assert.Equal(t, []string{EventOrderRefunded}, writer.eventTypes())
}

func TestAddOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"url": "https://secure.wayforpay.com/page?vid=abc"})
	}))
	defer server.Close()

	repo := newFakeOrderRepository()
	svc, _ := testService(repo, &fakeEventWriter{}, server.URL, "")

	resp, err := svc.AddOrder(context.Background(), dto.OrderRequest{
		Currency: "ГРН",
		OrderItems: []dto.OrderItemRequest{
			{ProductName: "Doohickey", Quantity: 3, LineTotal: 149.97},
		},
		ClientEmail: "customer@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://secure.wayforpay.com/page?vid=abc", resp.RedirectURL)
	assert.Equal(t, "UAH", resp.Currency)
	assert.Equal(t, domain.PaymentStatusPending, resp.PaymentStatus)

	orderID, err := wayforpay.SplitOrderReference(resp.OrderReference)
	require.NoError(t, err)

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.InDelta(t, 149.97, order.Amount, 0.0001)
	assert.Len(t, repo.details[orderID], 1)
}

func TestAddOrder_DeclinedDoesNotPersistPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"transactionStatus": wayforpay.TransactionDeclined,
			"reason":            "Fraud suspected",
		})
	}))
	defer server.Close()

	repo := newFakeOrderRepository()
	svc, _ := testService(repo, &fakeEventWriter{}, server.URL, "")

	_, err := svc.AddOrder(context.Background(), dto.OrderRequest{
		Currency:   "UAH",
		OrderItems: []dto.OrderItemRequest{{ProductName: "Doohickey", Quantity: 1, LineTotal: 10}},
	})
	assert.ErrorIs(t, err, errs.ErrProcessorDeclined)
}

func TestExpireStalePayments(t *testing.T) {
	repo := newFakeOrderRepository()
	svc, _ := testService(repo, &fakeEventWriter{}, "", "")
	orderID := pendingOrder(repo, 149.99)

	svc.ExpireStalePayments()

	order, err := repo.GetOrderByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, order.PaymentStatus)
	assert.Len(t, repo.notes[orderID], 1)
}
