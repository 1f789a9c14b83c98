package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/alimikegami/point-of-sales/payment-service/internal/domain"
	pkgdto "github.com/alimikegami/point-of-sales/payment-service/pkg/dto"
	"github.com/alimikegami/point-of-sales/payment-service/pkg/errs"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type OrderRepositoryImpl struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

func CreateOrderRepository(db *sqlx.DB) OrderRepository {
	return &OrderRepositoryImpl{
		db: db,
	}
}

func (r *OrderRepositoryImpl) ext() sqlx.ExtContext {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *OrderRepositoryImpl) AddOrder(ctx context.Context, data domain.Order) (id int64, err error) {
	query := "INSERT INTO orders(order_key, amount, currency, payment_status, client_first_name, client_last_name, client_address, client_city, client_phone, client_email, client_country, client_zip_code, created_at, updated_at) VALUES (:order_key, :amount, :currency, :payment_status, :client_first_name, :client_last_name, :client_address, :client_city, :client_phone, :client_email, :client_country, :client_zip_code, :created_at, :updated_at) returning id"

	rows, err := sqlx.NamedQueryContext(ctx, r.ext(), query, data)
	if err != nil {
		log.Error().Err(err).Str("component", "AddOrder").Msg("")
		return
	}
	defer rows.Close()

	if rows.Next() {
		if err = rows.Scan(&id); err != nil {
			log.Error().Err(err).Str("component", "AddOrder").Msg("")
			return
		}
	}

	return id, nil
}

func (r *OrderRepositoryImpl) AddOrderDetails(ctx context.Context, data []domain.OrderDetail) (err error) {
	_, err = sqlx.NamedExecContext(ctx, r.ext(), "INSERT INTO order_details(product_name, order_id, quantity, amount, created_at, updated_at) VALUES (:product_name, :order_id, :quantity, :amount, :created_at, :updated_at)", data)
	if err != nil {
		log.Error().Err(err).Str("component", "AddOrderDetails").Msg("")
		return
	}

	return nil
}

func (r *OrderRepositoryImpl) GetOrderByID(ctx context.Context, id int64) (data domain.Order, err error) {
	row := r.db.QueryRowxContext(ctx, "SELECT id, order_key, amount, currency, payment_status, transaction_ref, failure_reason, paid_at, client_first_name, client_last_name, client_address, client_city, client_phone, client_email, client_country, client_zip_code, created_at, updated_at, deleted_at FROM orders WHERE id = $1 AND deleted_at IS NULL", id)
	err = row.StructScan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return data, errs.ErrOrderNotFound
		}
		log.Error().Err(err).Str("component", "GetOrderByID").Msg("")
		return data, errs.ErrInternalServer
	}

	return
}

func (r *OrderRepositoryImpl) GetOrderDetailsByOrderID(ctx context.Context, orderID int64) (data []domain.OrderDetail, err error) {
	err = r.db.SelectContext(ctx, &data, "SELECT id, order_id, product_name, quantity, amount, created_at, updated_at, deleted_at FROM order_details WHERE order_id = $1 AND deleted_at IS NULL", orderID)
	if err != nil {
		log.Error().Err(err).Str("component", "GetOrderDetailsByOrderID").Msg("")
		return nil, errs.ErrInternalServer
	}

	return
}

func (r *OrderRepositoryImpl) GetOrders(ctx context.Context, filter pkgdto.Filter) (data []domain.Order, err error) {
	query := "SELECT id, order_key, amount, currency, payment_status, transaction_ref, failure_reason, paid_at, client_first_name, client_last_name, client_address, client_city, client_phone, client_email, client_country, client_zip_code, created_at, updated_at, deleted_at FROM orders WHERE deleted_at IS NULL"

	args := make(map[string]interface{})

	if filter.PaymentStatus != "" {
		query += " AND payment_status = :payment_status"
		args["payment_status"] = filter.PaymentStatus
	}

	if filter.Expired {
		query += " AND created_at < :expired_before"
		args["expired_before"] = filter.ExpiredBefore
	}

	query += " ORDER BY id DESC"

	if filter.Limit != 0 && filter.Page != 0 {
		offset := (filter.Page - 1) * filter.Limit
		query += " LIMIT :limit OFFSET :offset"
		args["limit"] = filter.Limit
		args["offset"] = offset
	}

	nstmt, err := r.db.PrepareNamedContext(ctx, query)
	if err != nil {
		log.Error().Err(err).Str("component", "GetOrders").Msg("")
		return nil, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &data, args)
	if err != nil {
		log.Error().Err(err).Str("component", "GetOrders").Msg("")
		return nil, err
	}

	return
}

func (r *OrderRepositoryImpl) MarkOrderPaid(ctx context.Context, id int64, transactionRef string, paidAt int64) (err error) {
	// The status guard makes replayed Approved callbacks a no-op.
	_, err = r.ext().ExecContext(ctx, "UPDATE orders SET payment_status = 'paid', transaction_ref = $2, paid_at = $3, updated_at = $4 WHERE id = $1 AND payment_status <> 'paid' AND deleted_at IS NULL", id, transactionRef, paidAt, time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Str("component", "MarkOrderPaid").Msg("")
		return
	}

	return nil
}

func (r *OrderRepositoryImpl) MarkOrderRefunded(ctx context.Context, id int64) (err error) {
	_, err = r.ext().ExecContext(ctx, "UPDATE orders SET payment_status = 'refunded', updated_at = $2 WHERE id = $1 AND payment_status <> 'refunded' AND deleted_at IS NULL", id, time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Str("component", "MarkOrderRefunded").Msg("")
		return
	}

	return nil
}

func (r *OrderRepositoryImpl) MarkOrderFailed(ctx context.Context, id int64, reason string) (err error) {
	_, err = r.ext().ExecContext(ctx, "UPDATE orders SET payment_status = 'failed', failure_reason = $2, updated_at = $3 WHERE id = $1 AND payment_status <> 'failed' AND deleted_at IS NULL", id, reason, time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Str("component", "MarkOrderFailed").Msg("")
		return
	}

	return nil
}

func (r *OrderRepositoryImpl) ExpireOrder(ctx context.Context, id int64) (err error) {
	// Only a still-pending order may be failed by an expiry; a payment that
	// already completed in another transaction must not regress.
	_, err = r.ext().ExecContext(ctx, "UPDATE orders SET payment_status = 'failed', failure_reason = 'Payment expired', updated_at = $2 WHERE id = $1 AND payment_status = 'pending' AND deleted_at IS NULL", id, time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Str("component", "ExpireOrder").Msg("")
		return
	}

	return nil
}

func (r *OrderRepositoryImpl) AppendOrderNote(ctx context.Context, orderID int64, note string) (err error) {
	_, err = r.ext().ExecContext(ctx, "INSERT INTO order_notes(order_id, note, created_at) VALUES ($1, $2, $3)", orderID, note, time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Str("component", "AppendOrderNote").Msg("")
		return
	}

	return nil
}

func (r *OrderRepositoryImpl) HandleTrx(ctx context.Context, fn func(ctx context.Context, repo OrderRepository) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	txRepo := &OrderRepositoryImpl{
		db: r.db,
		tx: tx,
	}

	err = fn(ctx, txRepo)

	if err != nil {
		return err
	}

	return nil
}
