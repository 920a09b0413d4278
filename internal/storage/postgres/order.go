package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercatolabs/checkout/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, shipping_address, payment_method,
		total_amount, discount_amount, coupon_code, order_status, payment_status, gateway_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, title, unit_price, quantity, image)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getOrderSQL = `SELECT id, user_id, shipping_address, payment_method, total_amount,
		discount_amount, COALESCE(coupon_code, ''), order_status, payment_status,
		gateway_order_id, gateway_payment_id, created_at, updated_at
		FROM orders WHERE id = $1 AND user_id = $2`

	listOrdersSQL = `SELECT id, user_id, shipping_address, payment_method, total_amount,
		discount_amount, COALESCE(coupon_code, ''), order_status, payment_status,
		gateway_order_id, gateway_payment_id, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	getOrderItemsSQL = `SELECT order_id, product_id, title, unit_price, quantity, image
		FROM order_items WHERE order_id = ANY($1) ORDER BY product_id`

	transitionStatusSQL = `UPDATE orders SET order_status = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND order_status = ANY($4)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order row and all item rows in one transaction.
// Partial persistence is impossible: either the whole order commits or
// nothing does.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	shippingJSON, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, shippingJSON, string(o.PaymentMethod),
		o.Total, o.DiscountAmount, o.CouponCode,
		string(o.Status), string(o.PaymentStatus), o.GatewayOrderID,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		batch.Queue(insertOrderItemSQL, o.ID, it.ProductID, it.Title, it.UnitPrice, it.Quantity, it.Image)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting items for order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID loads one order with its items, scoped to the owning user.
func (r *OrderRepository) GetByID(ctx context.Context, userID, orderID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("finding order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %q: %w", orderID, err)
	}

	items, err := r.loadItems(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

// ListByUser returns the user's orders, newest first, items included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// TransitionStatus performs the status move as a single conditional update.
// A zero affected-row count means the order was not in an allowed state or
// does not belong to the user.
func (r *OrderRepository) TransitionStatus(ctx context.Context, userID, orderID string, from []order.Status, to order.Status) (bool, error) {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	tag, err := r.pool.Exec(ctx, transitionStatusSQL, orderID, userID, string(to), states)
	if err != nil {
		return false, fmt.Errorf("transitioning order %q to %s: %w", orderID, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

type orderItemRow struct {
	orderID string
	item    order.Item
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("loading order items: %w", err)
	}

	itemRows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (orderItemRow, error) {
		var ir orderItemRow
		err := row.Scan(&ir.orderID, &ir.item.ProductID, &ir.item.Title,
			&ir.item.UnitPrice, &ir.item.Quantity, &ir.item.Image)
		return ir, err
	})
	if err != nil {
		return nil, fmt.Errorf("loading order items: %w", err)
	}

	byOrder := make(map[string][]order.Item, len(orderIDs))
	for _, ir := range itemRows {
		byOrder[ir.orderID] = append(byOrder[ir.orderID], ir.item)
	}
	return byOrder, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		shippingJSON []byte
		method       string
		status       string
		payStatus    string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &shippingJSON, &method, &o.Total,
		&o.DiscountAmount, &o.CouponCode, &status, &payStatus,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(shippingJSON, &o.Shipping); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	o.PaymentMethod = order.PaymentMethod(method)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(payStatus)
	return o, nil
}
