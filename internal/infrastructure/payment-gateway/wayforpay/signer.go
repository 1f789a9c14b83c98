package wayforpay

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Signer computes and verifies the HMAC-MD5 signatures the gateway requires
// on every request and callback.
type Signer struct {
	merchantAccount string
	merchantSecret  string
}

func CreateSigner(merchantAccount, merchantSecret string) *Signer {
	return &Signer{
		merchantAccount: merchantAccount,
		merchantSecret:  merchantSecret,
	}
}

func (s *Signer) MerchantAccount() string {
	return s.merchantAccount
}

// Sign joins the payload values for the given keys with ";" and returns the
// hex-encoded HMAC-MD5 of the result. Fields missing from the payload are
// skipped entirely, not signed as empty strings; the gateway does the same
// on its side, so the joined strings have to match byte for byte.
func (s *Signer) Sign(payload Payload, keys []string) string {
	mac := hmac.New(md5.New, []byte(s.merchantSecret))
	mac.Write([]byte(joinFields(payload, keys)))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignString returns the base64-encoded joined string without hashing. The
// gateway uses it for troubleshooting signature mismatches; it is never
// accepted in place of a signature.
func (s *Signer) SignString(payload Payload, keys []string) string {
	return base64.StdEncoding.EncodeToString([]byte(joinFields(payload, keys)))
}

// Verify recomputes the signature over the given keys and compares it with
// the merchantSignature field in constant time. A payload without a merchant
// account or signature, or with a merchant account other than ours, never
// verifies.
func (s *Signer) Verify(payload Payload, keys []string) bool {
	account := payload.String("merchantAccount")
	signature := payload.String("merchantSignature")
	if account == "" || signature == "" || account != s.merchantAccount {
		return false
	}

	return hmac.Equal([]byte(s.Sign(payload, keys)), []byte(signature))
}

// VerifyCallback checks a service callback or return-flow payload.
func (s *Signer) VerifyCallback(payload Payload) bool {
	return s.Verify(payload, SignatureKeysServiceCallback)
}

// BuildAck produces the signed acknowledgment for a processed callback.
func (s *Signer) BuildAck(orderReference string, now int64) Ack {
	ack := Ack{
		OrderReference: orderReference,
		Status:         "accept",
		Time:           now,
	}

	ack.Signature = s.Sign(Payload{
		"orderReference": ack.OrderReference,
		"status":         ack.Status,
		"time":           FormatInt(ack.Time),
	}, SignatureKeysServiceResponse)

	return ack
}

func joinFields(payload Payload, keys []string) string {
	var flat []string
	for _, key := range keys {
		value, ok := payload[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case []string:
			flat = append(flat, v...)
		case string:
			flat = append(flat, v)
		}
	}
	return strings.Join(flat, ";")
}
