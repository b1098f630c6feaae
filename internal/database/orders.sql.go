package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tenant_id, order_number, table_number, status, notes, promo_code,
	subtotal, discount_amount, tax_amount, service_charge_amount, total_amount, total_paid,
	void_reason, voided_by, voided_at, completed_at, created_by, created_at, updated_at`

const activeStatusFilter = `status NOT IN ('COMPLETED', 'CANCELLED', 'VOID')`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                                                  Order
		status                                             string
		subtotal, discount, tax, service, total, totalPaid pgtype.Numeric
	)
	err := row.Scan(
		&o.ID, &o.TenantID, &o.OrderNumber, &o.TableNumber, &status, &o.Notes, &o.PromoCode,
		&subtotal, &discount, &tax, &service, &total, &totalPaid,
		&o.VoidReason, &o.VoidedBy, &o.VoidedAt, &o.CompletedAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	o.Status = OrderStatus(status)
	o.Subtotal = numericToDecimal(subtotal)
	o.DiscountAmount = numericToDecimal(discount)
	o.TaxAmount = numericToDecimal(tax)
	o.ServiceChargeAmount = numericToDecimal(service)
	o.TotalAmount = numericToDecimal(total)
	o.TotalPaid = numericToDecimal(totalPaid)
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetNextOrderSeq returns MAX(order_seq)+1 for the tenant. Concurrent callers
// can observe the same value; the unique order number constraint catches it.
func (q *Queries) GetNextOrderSeq(ctx context.Context, tenantID uuid.UUID) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_seq), 0) + 1 FROM orders WHERE tenant_id = $1`,
		tenantID,
	).Scan(&next)
	return next, err
}

// LockTable takes a transaction-scoped advisory lock on (tenant, table) so
// that the active-order check and the insert run as one unit.
func (q *Queries) LockTable(ctx context.Context, tenantID uuid.UUID, tableNumber string) error {
	_, err := q.db.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`,
		tenantID.String(), tableNumber,
	)
	return err
}

func (q *Queries) GetActiveOrderByTableForUpdate(ctx context.Context, tenantID uuid.UUID, tableNumber string) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND table_number = $2 AND `+activeStatusFilter+`
		ORDER BY created_at DESC LIMIT 1
		FOR UPDATE`,
		tenantID, tableNumber,
	)
	return scanOrder(row)
}

func (q *Queries) CreateOrder(ctx context.Context, o Order, orderSeq int32) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO orders (
			id, tenant_id, order_seq, order_number, table_number, status, notes, promo_code,
			subtotal, discount_amount, tax_amount, service_charge_amount, total_amount, total_paid,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)`,
		o.ID, o.TenantID, orderSeq, o.OrderNumber, o.TableNumber, string(o.Status), o.Notes, o.PromoCode,
		decimalToNumeric(o.Subtotal), decimalToNumeric(o.DiscountAmount), decimalToNumeric(o.TaxAmount),
		decimalToNumeric(o.ServiceChargeAmount), decimalToNumeric(o.TotalAmount), decimalToNumeric(o.TotalPaid),
		o.CreatedBy, o.CreatedAt,
	)
	return err
}

func (q *Queries) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row for the rest of the transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, tenantID, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, id,
	)
	return scanOrder(row)
}

// UpdateOrder writes every mutable header column of o.
func (q *Queries) UpdateOrder(ctx context.Context, o Order) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE orders SET
			status = $3, notes = $4, promo_code = $5,
			subtotal = $6, discount_amount = $7, tax_amount = $8, service_charge_amount = $9,
			total_amount = $10, total_paid = $11,
			void_reason = $12, voided_by = $13, voided_at = $14, completed_at = $15,
			updated_at = $16
		WHERE tenant_id = $1 AND id = $2`,
		o.TenantID, o.ID, string(o.Status), o.Notes, o.PromoCode,
		decimalToNumeric(o.Subtotal), decimalToNumeric(o.DiscountAmount), decimalToNumeric(o.TaxAmount),
		decimalToNumeric(o.ServiceChargeAmount), decimalToNumeric(o.TotalAmount), decimalToNumeric(o.TotalPaid),
		o.VoidReason, o.VoidedBy, o.VoidedAt, o.CompletedAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type ListOrdersParams struct {
	TenantID    uuid.UUID
	Status      OrderStatus
	TableNumber string
	Limit       int32
	Offset      int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1
		  AND ($2::text = '' OR status = $2::text)
		  AND ($3::text = '' OR table_number = $3::text)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		arg.TenantID, string(arg.Status), arg.TableNumber, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (q *Queries) ListActiveOrders(ctx context.Context, tenantID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE tenant_id = $1 AND `+activeStatusFilter+`
		ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (q *Queries) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]OrderLine, error) {
	rows, err := q.db.Query(ctx,
		`SELECT position, product_id, quantity, unit_price, note, status, paid_quantity
		FROM order_lines WHERE order_id = $1 ORDER BY position`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var (
			l         OrderLine
			unitPrice pgtype.Numeric
			status    string
		)
		if err := rows.Scan(&l.Position, &l.ProductID, &l.Quantity, &unitPrice, &l.Note, &status, &l.PaidQuantity); err != nil {
			return nil, err
		}
		l.UnitPrice = numericToDecimal(unitPrice)
		l.Status = TicketStatus(status)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ReplaceOrderLines swaps the whole line list of an order.
func (q *Queries) ReplaceOrderLines(ctx context.Context, orderID uuid.UUID, lines []OrderLine) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	for _, l := range lines {
		_, err := q.db.Exec(ctx,
			`INSERT INTO order_lines (order_id, position, product_id, quantity, unit_price, note, status, paid_quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			orderID, l.Position, l.ProductID, l.Quantity, decimalToNumeric(l.UnitPrice), l.Note, string(l.Status), l.PaidQuantity,
		)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", l.Position, err)
		}
	}
	return nil
}

func (q *Queries) ListTickets(ctx context.Context, orderID uuid.UUID) ([]Ticket, error) {
	rows, err := q.db.Query(ctx,
		`SELECT seq, status, items, created_at, updated_at
		FROM order_tickets WHERE order_id = $1 ORDER BY seq`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var (
			t      Ticket
			status string
			items  []byte
		)
		if err := rows.Scan(&t.Seq, &status, &items, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Status = TicketStatus(status)
		if err := json.Unmarshal(items, &t.Items); err != nil {
			return nil, fmt.Errorf("decode ticket %d items: %w", t.Seq, err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (q *Queries) InsertTicket(ctx context.Context, orderID uuid.UUID, t Ticket) error {
	items, err := json.Marshal(t.Items)
	if err != nil {
		return fmt.Errorf("encode ticket items: %w", err)
	}
	_, err = q.db.Exec(ctx,
		`INSERT INTO order_tickets (order_id, seq, status, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		orderID, t.Seq, string(t.Status), items, t.CreatedAt,
	)
	return err
}

// UpdateTicketStatus moves a ticket from one status to another. It returns
// pgx.ErrNoRows when the ticket is no longer in the from status.
func (q *Queries) UpdateTicketStatus(ctx context.Context, orderID uuid.UUID, seq int32, from, to TicketStatus, at time.Time) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE order_tickets SET status = $4, updated_at = $5
		WHERE order_id = $1 AND seq = $2 AND status = $3`,
		orderID, seq, string(from), string(to), at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
