package wayforpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alimikegami/point-of-sales/payment-service/pkg/errs"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/httpclient"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// Client performs the outbound signed calls to the gateway. Calls are
// single-shot and synchronous; timeouts and retries belong to the caller.
type Client struct {
	signer         *Signer
	merchantDomain string
	payURL         string
	apiURL         string
	cb             *gobreaker.CircuitBreaker[[]byte]
}

// PurchaseResult carries the hosted-checkout redirect returned by the
// purchase endpoint.
type PurchaseResult struct {
	URL       string
	Reference string
}

// RefundResult carries the outcome of a refund request.
type RefundResult struct {
	TransactionStatus string
	ReasonCode        string
	Reason            string
}

func CreateClient(signer *Signer, merchantDomain, payURL, apiURL string, cb *gobreaker.CircuitBreaker[[]byte]) *Client {
	if payURL == "" {
		payURL = PayURL
	}
	if apiURL == "" {
		apiURL = APIURL
	}

	return &Client{
		signer:         signer,
		merchantDomain: merchantDomain,
		payURL:         payURL,
		apiURL:         apiURL,
		cb:             cb,
	}
}

func (c *Client) Signer() *Signer {
	return c.signer
}

// Purchase initiates a hosted-checkout payment. The behavior=offline query
// switches the endpoint from an HTML form response to a JSON one carrying
// the redirect URL.
func (c *Client) Purchase(ctx context.Context, payload Payload) (result PurchaseResult, err error) {
	if payload.String("merchantDomainName") == "" {
		payload["merchantDomainName"] = c.merchantDomain
	}
	payload["apiVersion"] = "2"
	payload["merchantTransactionSecureType"] = "AUTO"
	payload["merchantAccount"] = c.signer.MerchantAccount()
	payload["merchantSignature"] = c.signer.Sign(payload, SignatureKeysPurchase)
	payload["signString"] = c.signer.SignString(payload, SignatureKeysPurchase)

	response, err := c.post(ctx, c.payURL+"?behavior=offline", payload)
	if err != nil {
		return
	}

	result.URL = response.String("url")
	result.Reference = payload.String("orderReference")

	return
}

// Refund requests a refund or cancellation of an earlier payment.
func (c *Client) Refund(ctx context.Context, payload Payload) (result RefundResult, err error) {
	payload["transactionType"] = "REFUND"
	payload["apiVersion"] = "1"
	payload["merchantAccount"] = c.signer.MerchantAccount()
	payload["merchantSignature"] = c.signer.Sign(payload, SignatureKeysRefund)

	response, err := c.post(ctx, c.apiURL, payload)
	if err != nil {
		return
	}

	result.TransactionStatus = response.String("transactionStatus")
	result.ReasonCode = response.String("reasonCode")
	result.Reason = response.String("reason")

	return
}

func (c *Client) post(ctx context.Context, endpoint string, payload Payload) (Payload, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling gateway request: %w", err)
	}

	responseBody, err := c.cb.Execute(func() ([]byte, error) {
		statusCode, respBody, err := httpclient.SendRequest(ctx, httpclient.HttpRequest{
			URL:    endpoint,
			Method: http.MethodPost,
			Body:   body,
			Headers: map[string]string{
				"Content-Type": "application/json;charset=utf-8",
			},
		})
		if err != nil {
			return nil, err
		}
		if statusCode != http.StatusOK {
			return nil, fmt.Errorf("gateway returned status %d", statusCode)
		}
		return respBody, nil
	})
	if err != nil {
		log.Error().Err(err).Str("component", "wayforpay").Msg("gateway request failed")
		return nil, fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}

	response, err := ParseCallbackJSON(responseBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}

	// A declined transaction is a processor verdict, not a transport
	// failure; surface the gateway's reason to the caller.
	if response.String("transactionStatus") == TransactionDeclined {
		return nil, fmt.Errorf("%w: %s", errs.ErrProcessorDeclined, response.String("reason"))
	}

	return response, nil
}
