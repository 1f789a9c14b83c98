package dto

type KafkaMessage struct {
	EventType string      `json:"event_type"`
	Data      interface{} `json:"data"`
}

type PaymentEvent struct {
	OrderID           int64  `json:"order_id"`
	OrderReference    string `json:"order_reference"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	TransactionStatus string `json:"transaction_status"`
}
