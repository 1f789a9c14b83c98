package domain

// Order payment statuses.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

type Order struct {
	ID              int64   `db:"id"`
	OrderKey        string  `db:"order_key"`
	Amount          float64 `db:"amount"`
	Currency        string  `db:"currency"`
	PaymentStatus   string  `db:"payment_status"`
	TransactionRef  *string `db:"transaction_ref"`
	FailureReason   *string `db:"failure_reason"`
	PaidAt          *int64  `db:"paid_at"`
	ClientFirstName string  `db:"client_first_name"`
	ClientLastName  string  `db:"client_last_name"`
	ClientAddress   string  `db:"client_address"`
	ClientCity      string  `db:"client_city"`
	ClientPhone     string  `db:"client_phone"`
	ClientEmail     string  `db:"client_email"`
	ClientCountry   string  `db:"client_country"`
	ClientZipCode   string  `db:"client_zip_code"`
	CreatedAt       int64   `db:"created_at"`
	UpdatedAt       int64   `db:"updated_at"`
	DeletedAt       *int64  `db:"deleted_at"`
	OrderDetail     []OrderDetail
}

type OrderDetail struct {
	ID          int64   `db:"id"`
	OrderID     int64   `db:"order_id"`
	ProductName string  `db:"product_name"`
	Quantity    int64   `db:"quantity"`
	Amount      float64 `db:"amount"`
	CreatedAt   int64   `db:"created_at"`
	UpdatedAt   int64   `db:"updated_at"`
	DeletedAt   *int64  `db:"deleted_at"`
}

type OrderNote struct {
	ID        int64  `db:"id"`
	OrderID   int64  `db:"order_id"`
	Note      string `db:"note"`
	CreatedAt int64  `db:"created_at"`
}
