package wayforpay

import (
	"math"
	"strconv"
	"strings"
)

// FallbackCountry is used when the billing country is not a 3-letter code;
// the gateway rejects anything else.
const FallbackCountry = "UKR"

// OrderItem is one order line as seen by the payload builder.
type OrderItem struct {
	Name      string
	Quantity  int64
	LineTotal float64
}

// ClientInfo carries the billing details attached to a purchase.
type ClientInfo struct {
	FirstName string
	LastName  string
	Address   string
	City      string
	Phone     string
	Email     string
	Country   string
	ZipCode   string
}

// OrderView is the abstract order the payload builder maps onto the gateway
// purchase fields.
type OrderView struct {
	Reference string
	OrderDate int64
	Amount    float64
	Currency  string
	Items     []OrderItem
	Client    ClientInfo
}

// BuildPurchasePayload maps an order onto the purchase request fields. The
// caller still has to attach URLs, language, merchant fields and signature.
func BuildPurchasePayload(order OrderView) Payload {
	payload := Payload{
		"orderReference": order.Reference,
		"orderDate":      FormatInt(order.OrderDate),
		"amount":         FormatAmount(order.Amount),
		"currency":       NormalizeCurrency(order.Currency),
	}

	if len(order.Items) > 0 {
		names := make([]string, len(order.Items))
		counts := make([]string, len(order.Items))
		prices := make([]string, len(order.Items))
		for i, item := range order.Items {
			names[i] = item.Name
			counts[i] = FormatInt(item.Quantity)
			prices[i] = FormatAmount(UnitPrice(item.LineTotal, item.Quantity))
		}
		payload["productName"] = names
		payload["productCount"] = counts
		payload["productPrice"] = prices
	} else {
		// The gateway rejects purchases with empty product arrays, so an
		// itemless order becomes a single pseudo-item named after its
		// reference.
		payload["productName"] = []string{order.Reference}
		payload["productCount"] = []string{"1"}
		payload["productPrice"] = []string{FormatAmount(order.Amount)}
	}

	client := order.Client
	payload["clientFirstName"] = client.FirstName
	payload["clientLastName"] = client.LastName
	payload["clientAddress"] = strings.TrimSpace(client.Address)
	payload["clientCity"] = client.City
	payload["clientPhone"] = NormalizePhone(client.Phone)
	payload["clientEmail"] = client.Email
	payload["clientCountry"] = NormalizeCountry(client.Country)
	payload["clientZipCode"] = client.ZipCode

	return payload
}

// BuildRefundPayload maps a refund request onto the gateway fields. The
// reference here is the gateway transaction reference recorded from the
// purchase callback, not the internal order id.
func BuildRefundPayload(transactionRef string, amount float64, currency, reason string) Payload {
	if reason == "" {
		reason = "Not provided"
	}
	return Payload{
		"orderReference": transactionRef,
		"amount":         FormatAmount(amount),
		"currency":       NormalizeCurrency(currency),
		"comment":        reason,
	}
}

// UnitPrice recomputes the per-item price the way the gateway does, so a
// line total that drifted from quantity*price still signs identically on
// both sides. Half-up rounding to two decimals.
func UnitPrice(lineTotal float64, quantity int64) float64 {
	if quantity == 0 {
		return roundHalfUp(lineTotal)
	}
	return roundHalfUp(lineTotal / float64(quantity))
}

func roundHalfUp(value float64) float64 {
	return math.Floor(value*100+0.5) / 100
}

// NormalizeCurrency maps locale aliases of the hryvnia onto the canonical
// ISO code. Anything else passes through unchanged.
func NormalizeCurrency(currency string) string {
	switch currency {
	case "ГРН", "uah":
		return "UAH"
	default:
		return currency
	}
}

// NormalizeCountry falls back to a fixed country rather than rejecting the
// order when the billing country is not a 3-letter code.
func NormalizeCountry(country string) string {
	if len(country) != 3 {
		return FallbackCountry
	}
	return country
}

// NormalizePhone strips formatting characters and prepends the country
// calling code for the two local lengths the gateway expects. Other lengths
// are passed through as-is.
func NormalizePhone(phone string) string {
	replacer := strings.NewReplacer("+", "", " ", "", "(", "", ")", "")
	phone = replacer.Replace(phone)
	switch len(phone) {
	case 10:
		return "38" + phone
	case 11:
		return "3" + phone
	default:
		return phone
	}
}

// NormalizeLanguage maps the site language onto the gateway's two-letter
// codes.
func NormalizeLanguage(language string) string {
	if len(language) > 2 {
		language = language[:2]
	}
	if language == "uk" {
		return "ua"
	}
	return language
}

// FormatAmount renders a monetary value without trailing zeros, matching
// the representation the gateway signs.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func FormatInt(value int64) string {
	return strconv.FormatInt(value, 10)
}
