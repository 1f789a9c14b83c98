package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alimikegami/point-of-sales/payment-service/config"
	"github.com/alimikegami/point-of-sales/payment-service/internal/domain"
	"github.com/alimikegami/point-of-sales/payment-service/internal/dto"
	"github.com/alimikegami/point-of-sales/payment-service/internal/infrastructure/payment-gateway/wayforpay"
	"github.com/alimikegami/point-of-sales/payment-service/internal/repository"
	pkgdto "github.com/alimikegami/point-of-sales/payment-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/errs"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/utils"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"gopkg.in/gomail.v2"
)

const (
	EventOrderPaid          = "order_paid"
	EventOrderRefunded      = "order_refunded"
	EventOrderPaymentFailed = "order_payment_failed"
)

type eventWriter interface {
	WriteMessages(msgs ...kafka.Message) (int, error)
}

type PaymentServiceImpl struct {
	repository    repository.OrderRepository
	gatewayClient *wayforpay.Client
	kafkaProducer eventWriter
	config        *config.Config
}

func CreatePaymentService(repository repository.OrderRepository, gatewayClient *wayforpay.Client, kafkaProducer eventWriter, config *config.Config) PaymentService {
	return &PaymentServiceImpl{
		repository:    repository,
		gatewayClient: gatewayClient,
		kafkaProducer: kafkaProducer,
		config:        config,
	}
}

func (s *PaymentServiceImpl) AddOrder(ctx context.Context, req dto.OrderRequest) (resp dto.OrderResponse, err error) {
	now := time.Now().Unix()

	var totalAmount float64
	for _, item := range req.OrderItems {
		totalAmount += item.LineTotal
	}

	err = s.repository.HandleTrx(ctx, func(ctx context.Context, repo repository.OrderRepository) error {
		orderID, err := repo.AddOrder(ctx, domain.Order{
			OrderKey:        uuid.NewString(),
			Amount:          totalAmount,
			Currency:        wayforpay.NormalizeCurrency(req.Currency),
			PaymentStatus:   domain.PaymentStatusPending,
			ClientFirstName: req.ClientFirstName,
			ClientLastName:  req.ClientLastName,
			ClientAddress:   req.ClientAddress,
			ClientCity:      req.ClientCity,
			ClientPhone:     req.ClientPhone,
			ClientEmail:     req.ClientEmail,
			ClientCountry:   req.ClientCountry,
			ClientZipCode:   req.ClientZipCode,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}

		orderDetails := make([]domain.OrderDetail, len(req.OrderItems))
		for i, item := range req.OrderItems {
			orderDetails[i] = domain.OrderDetail{
				OrderID:     orderID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Amount:      item.LineTotal,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		}

		if len(orderDetails) > 0 {
			if err := repo.AddOrderDetails(ctx, orderDetails); err != nil {
				return err
			}
		}

		reference := wayforpay.BuildOrderReference(orderID, s.config.WayforpayConfig.ReferenceSuffix, now)

		items := make([]wayforpay.OrderItem, len(req.OrderItems))
		for i, item := range req.OrderItems {
			items[i] = wayforpay.OrderItem{
				Name:      item.ProductName,
				Quantity:  item.Quantity,
				LineTotal: item.LineTotal,
			}
		}

		payload := wayforpay.BuildPurchasePayload(wayforpay.OrderView{
			Reference: reference,
			OrderDate: now,
			Amount:    totalAmount,
			Currency:  req.Currency,
			Items:     items,
			Client: wayforpay.ClientInfo{
				FirstName: req.ClientFirstName,
				LastName:  req.ClientLastName,
				Address:   req.ClientAddress,
				City:      req.ClientCity,
				Phone:     req.ClientPhone,
				Email:     req.ClientEmail,
				Country:   req.ClientCountry,
				ZipCode:   req.ClientZipCode,
			},
		})

		payload["returnUrl"] = s.config.WayforpayConfig.PublicBaseURL + "/api/v1/payments/wayforpay/return"
		payload["serviceUrl"] = s.config.WayforpayConfig.PublicBaseURL + "/api/v1/payments/wayforpay/callback"
		payload["language"] = wayforpay.NormalizeLanguage(s.config.WayforpayConfig.Language)

		result, err := s.gatewayClient.Purchase(ctx, payload)
		if err != nil {
			return err
		}

		resp = dto.OrderResponse{
			ID:             orderID,
			OrderReference: reference,
			Amount:         totalAmount,
			Currency:       wayforpay.NormalizeCurrency(req.Currency),
			PaymentStatus:  domain.PaymentStatusPending,
			RedirectURL:    result.URL,
		}

		return nil
	})

	if err != nil {
		return dto.OrderResponse{}, err
	}

	return resp, nil
}

func (s *PaymentServiceImpl) GetOrders(ctx context.Context, filter pkgdto.Filter) (response pkgdto.Pagination, err error) {
	var orderResponse []dto.OrderResponse
	datas, err := s.repository.GetOrders(ctx, filter)
	if err != nil {
		return
	}

	for _, data := range datas {
		orderResponse = append(orderResponse, dto.OrderResponse{
			ID:            data.ID,
			Amount:        data.Amount,
			Currency:      data.Currency,
			PaymentStatus: data.PaymentStatus,
			PaidAt:        data.PaidAt,
		})
	}

	response.Records = orderResponse

	return
}

func (s *PaymentServiceImpl) RefundOrder(ctx context.Context, orderID int64, req dto.RefundRequest) (err error) {
	order, err := s.repository.GetOrderByID(ctx, orderID)
	if err != nil {
		return
	}

	// A refund needs the gateway transaction recorded by a successful
	// purchase callback; without it there is nothing to refund against.
	if order.TransactionRef == nil || *order.TransactionRef == "" {
		return errs.ErrRefundPrecondition
	}

	amount := req.Amount
	if amount == 0 {
		amount = order.Amount
	}

	payload := wayforpay.BuildRefundPayload(*order.TransactionRef, amount, order.Currency, req.Reason)

	result, err := s.gatewayClient.Refund(ctx, payload)
	if err != nil {
		return
	}

	switch result.TransactionStatus {
	case wayforpay.TransactionRefunded, wayforpay.TransactionVoided:
		if err := s.repository.MarkOrderRefunded(ctx, order.ID); err != nil {
			return err
		}
		note := fmt.Sprintf("Refunded %s %s.", wayforpay.FormatAmount(amount), order.Currency)
		if err := s.repository.AppendOrderNote(ctx, order.ID, note); err != nil {
			return err
		}
		s.publishPaymentEvent(EventOrderRefunded, order.ID, *order.TransactionRef, wayforpay.FormatAmount(amount), order.Currency, result.TransactionStatus)
		return nil
	default:
		return fmt.Errorf("%w: refund returned status %s", errs.ErrProcessorDeclined, result.TransactionStatus)
	}
}

func (s *PaymentServiceImpl) HandleServiceCallback(ctx context.Context, body []byte) (ack wayforpay.Ack, err error) {
	payload, err := wayforpay.ParseCallbackJSON(body)
	if err != nil {
		return ack, fmt.Errorf("%w: %v", errs.ErrBadRequest, err)
	}

	_, ack, err = s.processCallback(ctx, payload)
	return
}

func (s *PaymentServiceImpl) HandleReturnRedirect(ctx context.Context, form url.Values) (redirectURL string, err error) {
	if len(form) == 0 {
		return "", errs.ErrBadRequest
	}

	order, _, err := s.processCallback(ctx, wayforpay.ParseCallbackForm(form))
	if err != nil {
		return "", err
	}

	redirect, err := url.Parse(s.config.WayforpayConfig.ReturnURL)
	if err != nil {
		return "", err
	}

	query := redirect.Query()
	query.Set("key", order.OrderKey)
	redirect.RawQuery = query.Encode()

	return redirect.String(), nil
}

// processCallback runs the gates shared by the service callback and the
// return redirect: signature first, then order resolution, then the guarded
// state transition. No transition is ever applied to an unverified payload.
func (s *PaymentServiceImpl) processCallback(ctx context.Context, payload wayforpay.Payload) (order domain.Order, ack wayforpay.Ack, err error) {
	if !s.gatewayClient.Signer().VerifyCallback(payload) {
		return order, ack, errs.ErrInvalidSignature
	}

	callback := wayforpay.CallbackFromPayload(payload)

	orderID, err := wayforpay.SplitOrderReference(callback.OrderReference)
	if err != nil {
		log.Error().Err(err).Str("component", "processCallback").Msg("")
		return order, ack, errs.ErrOrderNotFound
	}

	order, err = s.repository.GetOrderByID(ctx, orderID)
	if err != nil {
		return order, ack, err
	}

	if err = s.applyTransition(ctx, order, callback); err != nil {
		return order, ack, err
	}

	ack = s.gatewayClient.Signer().BuildAck(callback.OrderReference, time.Now().Unix())

	return order, ack, nil
}

func (s *PaymentServiceImpl) applyTransition(ctx context.Context, order domain.Order, callback wayforpay.Callback) error {
	action := domain.ResolvePaymentTransition(order.PaymentStatus, callback.TransactionStatus)

	switch action {
	case domain.ActionNone:
		// Replay of a state the order is already in.
		return nil
	case domain.ActionMarkPaid:
		if err := s.repository.MarkOrderPaid(ctx, order.ID, callback.OrderReference, time.Now().Unix()); err != nil {
			return err
		}
		note := fmt.Sprintf("Payment successful: %s %s. WayForPay reference: %s", callback.Amount, callback.Currency, callback.OrderReference)
		if err := s.repository.AppendOrderNote(ctx, order.ID, note); err != nil {
			return err
		}
		s.publishPaymentEvent(EventOrderPaid, order.ID, callback.OrderReference, callback.Amount, callback.Currency, callback.TransactionStatus)
		s.sendPaymentReceipt(order, callback)
		return nil
	case domain.ActionMarkRefunded:
		if err := s.repository.MarkOrderRefunded(ctx, order.ID); err != nil {
			return err
		}
		note := fmt.Sprintf("Refunded %s %s. WayForPay reference: %s", callback.Amount, callback.Currency, callback.OrderReference)
		if err := s.repository.AppendOrderNote(ctx, order.ID, note); err != nil {
			return err
		}
		s.publishPaymentEvent(EventOrderRefunded, order.ID, callback.OrderReference, callback.Amount, callback.Currency, callback.TransactionStatus)
		return nil
	case domain.ActionMarkFailed:
		if callback.TransactionStatus == wayforpay.TransactionExpired {
			if err := s.repository.ExpireOrder(ctx, order.ID); err != nil {
				return err
			}
			if err := s.repository.AppendOrderNote(ctx, order.ID, "Payment expired."); err != nil {
				return err
			}
		} else {
			reason := fmt.Sprintf("%s - %s", valueOrNA(callback.ReasonCode), valueOrNA(callback.Reason))
			if err := s.repository.MarkOrderFailed(ctx, order.ID, reason); err != nil {
				return err
			}
			if err := s.repository.AppendOrderNote(ctx, order.ID, fmt.Sprintf("Payment failed: %s.", reason)); err != nil {
				return err
			}
		}
		s.publishPaymentEvent(EventOrderPaymentFailed, order.ID, callback.OrderReference, callback.Amount, callback.Currency, callback.TransactionStatus)
		return nil
	default:
		return s.repository.AppendOrderNote(ctx, order.ID, fmt.Sprintf("Transaction updated, current status: %s", callback.TransactionStatus))
	}
}

func (s *PaymentServiceImpl) publishPaymentEvent(eventType string, orderID int64, reference, amount, currency, transactionStatus string) {
	kafkaMsg := dto.KafkaMessage{
		EventType: eventType,
		Data: dto.PaymentEvent{
			OrderID:           orderID,
			OrderReference:    reference,
			Amount:            amount,
			Currency:          currency,
			TransactionStatus: transactionStatus,
		},
	}

	jsonMsg, err := json.Marshal(kafkaMsg)
	if err != nil {
		log.Error().Err(err).Str("component", "publishPaymentEvent").Msg("")
		return
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		err = s.writeKafkaMessageWithKey(jsonMsg, reference)
		if err == nil {
			return
		}
		log.Error().Err(err).Str("component", "publishPaymentEvent").Msg("")
		time.Sleep(time.Second * time.Duration(i+1)) // Exponential backoff
	}
}

func (s *PaymentServiceImpl) writeKafkaMessageWithKey(msg []byte, key string) error {
	_, err := s.kafkaProducer.WriteMessages(
		kafka.Message{
			Key:   []byte(key),
			Value: msg,
		},
	)
	return err
}

func (s *PaymentServiceImpl) sendPaymentReceipt(order domain.Order, callback wayforpay.Callback) {
	smtp := s.config.SMTPConfig
	if smtp.Sender == "" || order.ClientEmail == "" {
		return
	}

	message := gomail.NewMessage()
	message.SetHeader("From", smtp.Sender)
	message.SetHeader("To", order.ClientEmail)
	message.SetHeader("Subject", "Payment confirmation")
	message.SetBody("text/plain", fmt.Sprintf("Your payment of %s %s for order %d was successful.", callback.Amount, callback.Currency, order.ID))

	if err := utils.SendEmail(message, smtp.Sender, smtp.Password, smtp.Server, smtp.Port); err != nil {
		log.Error().Err(err).Str("component", "sendPaymentReceipt").Msg("")
	}
}

func (s *PaymentServiceImpl) ExpireStalePayments() {
	log.Info().Str("component", "ExpireStalePayments").Msg("cron starts")

	ctx := context.Background()
	orders, err := s.repository.GetOrders(ctx, pkgdto.Filter{
		PaymentStatus: domain.PaymentStatusPending,
		Expired:       true,
		ExpiredBefore: time.Now().Unix() - s.config.PaymentTTL,
	})
	if err != nil {
		return
	}

	for _, order := range orders {
		if err := s.repository.ExpireOrder(ctx, order.ID); err != nil {
			return
		}
		if err := s.repository.AppendOrderNote(ctx, order.ID, "Payment expired."); err != nil {
			return
		}
	}

	log.Info().Str("component", "ExpireStalePayments").Msg("cron ends")
}

func valueOrNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}
