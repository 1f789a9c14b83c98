package wayforpay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	PayURL = "https://secure.wayforpay.com/pay"
	APIURL = "https://api.wayforpay.com/api"

	TestMerchantAccount = "test_merch_n1"
	TestMerchantSecret  = "flk3409refn54t54t*FNJRET"
)

// Transaction statuses reported by the gateway, see https://wiki.wayforpay.com/en/view/852131
const (
	TransactionApproved           = "Approved"
	TransactionRefunded           = "Refunded"
	TransactionRefundInProcessing = "RefundInProcessing"
	TransactionVoided             = "Voided"
	TransactionDeclined           = "Declined"
	TransactionExpired            = "Expired"
	TransactionPending            = "Pending"
)

var SignatureKeysPurchase = []string{
	"merchantAccount",
	"merchantDomainName",
	"orderReference",
	"orderDate",
	"amount",
	"currency",
	"productName",
	"productCount",
	"productPrice",
}

var SignatureKeysRefund = []string{
	"merchantAccount",
	"orderReference",
	"amount",
	"currency",
}

var SignatureKeysServiceCallback = []string{
	"merchantAccount",
	"orderReference",
	"amount",
	"currency",
	"authCode",
	"cardPan",
	"transactionStatus",
	"reasonCode",
}

var SignatureKeysServiceResponse = []string{
	"orderReference",
	"status",
	"time",
}

// Payload holds the request or callback fields keyed by their wire names.
// Values are either string or []string; the parallel product arrays are the
// only list-valued fields the gateway uses.
type Payload map[string]interface{}

// Callback is the typed view of a service callback or return-flow payload.
type Callback struct {
	MerchantAccount   string
	OrderReference    string
	Amount            string
	Currency          string
	AuthCode          string
	CardPan           string
	TransactionStatus string
	ReasonCode        string
	Reason            string
	MerchantSignature string
}

// Ack is the signed acknowledgment the gateway expects in response to a
// service callback. The gateway keeps retrying the callback until it
// receives a body of this shape with a valid signature.
type Ack struct {
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Time           int64  `json:"time"`
	Signature      string `json:"signature"`
}

// ParseCallbackJSON decodes a callback body into a Payload. Numbers keep
// their original textual representation so that signature verification sees
// the exact bytes the gateway signed.
func ParseCallbackJSON(body []byte) (Payload, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding callback body: %w", err)
	}

	payload := Payload{}
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			payload[key] = v
		case json.Number:
			payload[key] = v.String()
		case []interface{}:
			items := make([]string, 0, len(v))
			for _, item := range v {
				switch i := item.(type) {
				case string:
					items = append(items, i)
				case json.Number:
					items = append(items, i.String())
				}
			}
			payload[key] = items
		case nil:
			// absent for signing purposes
		}
	}

	return payload, nil
}

// ParseCallbackForm converts return-flow form fields into a Payload. The
// repeated product fields arrive with a [] suffix on the name.
func ParseCallbackForm(form url.Values) Payload {
	payload := Payload{}
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		if strings.HasSuffix(key, "[]") {
			payload[strings.TrimSuffix(key, "[]")] = values
			continue
		}
		if len(values) > 1 {
			payload[key] = values
			continue
		}
		payload[key] = values[0]
	}
	return payload
}

// CallbackFromPayload extracts the typed callback fields.
func CallbackFromPayload(payload Payload) Callback {
	return Callback{
		MerchantAccount:   payload.String("merchantAccount"),
		OrderReference:    payload.String("orderReference"),
		Amount:            payload.String("amount"),
		Currency:          payload.String("currency"),
		AuthCode:          payload.String("authCode"),
		CardPan:           payload.String("cardPan"),
		TransactionStatus: payload.String("transactionStatus"),
		ReasonCode:        payload.String("reasonCode"),
		Reason:            payload.String("reason"),
		MerchantSignature: payload.String("merchantSignature"),
	}
}

func (p Payload) String(key string) string {
	value, ok := p[key]
	if !ok {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// BuildOrderReference composes the reference sent to the gateway. The unix
// timestamp suffix makes retried payment attempts distinguishable.
func BuildOrderReference(orderID int64, suffix string, now int64) string {
	return fmt.Sprintf("%d_%s_%d", orderID, suffix, now)
}

// SplitOrderReference recovers the internal order id from a gateway
// reference.
func SplitOrderReference(reference string) (int64, error) {
	parts := strings.SplitN(reference, "_", 2)
	orderID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable order reference %q: %w", reference, err)
	}
	return orderID, nil
}
