package dto

type OrderItemRequest struct {
	ProductName string  `json:"product_name"`
	Quantity    int64   `json:"quantity"`
	LineTotal   float64 `json:"line_total"`
}

type OrderRequest struct {
	Currency        string             `json:"currency"`
	OrderItems      []OrderItemRequest `json:"order_items"`
	ClientFirstName string             `json:"client_first_name"`
	ClientLastName  string             `json:"client_last_name"`
	ClientAddress   string             `json:"client_address"`
	ClientCity      string             `json:"client_city"`
	ClientPhone     string             `json:"client_phone"`
	ClientEmail     string             `json:"client_email"`
	ClientCountry   string             `json:"client_country"`
	ClientZipCode   string             `json:"client_zip_code"`
}

type RefundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}
