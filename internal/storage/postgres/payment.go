package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercatolabs/checkout/internal/domain/payment"
)

const (
	// The conflict target is the partial unique index on completed payments,
	// so a retried callback cannot create a second completed row.
	insertCompletedPaymentSQL = `INSERT INTO payments
		(id, order_id, gateway_order_id, gateway_payment_id, signature, status, amount, currency)
		VALUES ($1, $2, $3, $4, $5, 'completed', $6, $7)
		ON CONFLICT (order_id) WHERE status = 'completed' DO NOTHING`

	completeOrderPaymentSQL = `UPDATE orders SET payment_status = 'completed',
		gateway_order_id = $2, gateway_payment_id = $3, updated_at = now()
		WHERE id = $1`

	selectCompletedPaymentSQL = `SELECT id, order_id, gateway_order_id, gateway_payment_id,
		signature, status, amount, currency, created_at
		FROM payments WHERE order_id = $1 AND status = 'completed'`

	failOrderPaymentSQL = `UPDATE orders SET payment_status = 'failed', updated_at = now()
		WHERE id = $1 AND payment_status <> 'completed'`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// ApplyCompleted records the payment row and marks the order's payment
// completed in one transaction. When a completed payment for the order
// already exists the insert no-ops against the partial unique index, the
// order is left untouched, and the stored row is returned so retried
// callbacks see a stable payment id.
func (r *PaymentRepository) ApplyCompleted(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, insertCompletedPaymentSQL,
		p.ID, p.OrderID, p.GatewayOrderID, p.GatewayPaymentID, p.Signature, p.Amount, p.Currency,
	)
	if err != nil {
		return nil, fmt.Errorf("recording payment for order %q: %w", p.OrderID, err)
	}

	stored := p
	if tag.RowsAffected() == 0 {
		rows, err := tx.Query(ctx, selectCompletedPaymentSQL, p.OrderID)
		if err != nil {
			return nil, fmt.Errorf("loading payment for order %q: %w", p.OrderID, err)
		}
		stored, err = pgx.CollectExactlyOneRow(rows, scanPayment)
		if err != nil {
			return nil, fmt.Errorf("loading payment for order %q: %w", p.OrderID, err)
		}
	} else {
		_, err = tx.Exec(ctx, completeOrderPaymentSQL, p.OrderID, p.GatewayOrderID, p.GatewayPaymentID)
		if err != nil {
			return nil, fmt.Errorf("completing payment for order %q: %w", p.OrderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing payment for order %q: %w", p.OrderID, err)
	}
	return stored, nil
}

// MarkOrderFailed flags the order's payment as failed unless it already
// completed. The order status itself is untouched.
func (r *PaymentRepository) MarkOrderFailed(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx, failOrderPaymentSQL, orderID)
	if err != nil {
		return fmt.Errorf("failing payment for order %q: %w", orderID, err)
	}
	return nil
}

func scanPayment(row pgx.CollectableRow) (*payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.GatewayOrderID, &p.GatewayPaymentID,
		&p.Signature, &p.Status, &p.Amount, &p.Currency, &p.CreatedAt,
	)
	return &p, err
}
