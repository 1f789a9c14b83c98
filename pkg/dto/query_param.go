package dto

type Filter struct {
	Limit         int    `query:"limit"`
	Page          int    `query:"page"`
	PaymentStatus string `query:"payment_status"`
	Expired       bool   `query:"-"`
	ExpiredBefore int64  `query:"-"`
}

type Pagination struct {
	Previous *string     `json:"previous"`
	Next     *string     `json:"next"`
	Records  interface{} `json:"records"`
}
