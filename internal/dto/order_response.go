package dto

type OrderResponse struct {
	ID             int64   `json:"id"`
	OrderReference string  `json:"order_reference"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	PaymentStatus  string  `json:"payment_status"`
	PaidAt         *int64  `json:"paid_at"`
	RedirectURL    string  `json:"redirect_url,omitempty"`
}
