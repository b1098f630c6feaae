package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func (q *Queries) ListPayments(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx,
		`SELECT seq, amount, method, provider, cashier_id, amount_received, change_amount,
			rounding_adjustment, items, note, created_at
		FROM order_payments WHERE order_id = $1 ORDER BY seq`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var (
			p                                  Payment
			amount, received, change, rounding pgtype.Numeric
			method, provider                   string
			items                              []byte
		)
		if err := rows.Scan(&p.Seq, &amount, &method, &provider, &p.CashierID, &received, &change,
			&rounding, &items, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Amount = numericToDecimal(amount)
		p.AmountReceived = numericToDecimal(received)
		p.ChangeAmount = numericToDecimal(change)
		p.RoundingAdjustment = numericToDecimal(rounding)
		p.Method = PaymentMethod(method)
		p.Provider = PaymentProvider(provider)
		if err := json.Unmarshal(items, &p.Items); err != nil {
			return nil, fmt.Errorf("decode payment %d items: %w", p.Seq, err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (q *Queries) InsertPayment(ctx context.Context, tenantID, orderID uuid.UUID, p Payment) error {
	items := p.Items
	if items == nil {
		items = []PaymentItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode payment items: %w", err)
	}
	_, err = q.db.Exec(ctx,
		`INSERT INTO order_payments (
			order_id, seq, tenant_id, amount, method, provider, cashier_id,
			amount_received, change_amount, rounding_adjustment, items, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		orderID, p.Seq, tenantID, decimalToNumeric(p.Amount), string(p.Method), string(p.Provider), p.CashierID,
		decimalToNumeric(p.AmountReceived), decimalToNumeric(p.ChangeAmount), decimalToNumeric(p.RoundingAdjustment),
		raw, p.Note, p.CreatedAt,
	)
	return err
}

type SumPaymentsParams struct {
	TenantID  uuid.UUID
	CashierID *uuid.UUID
	From      time.Time
	To        time.Time
}

// SumPaymentsByMethod totals payments in [From, To] per method. Payments of
// voided orders are excluded. A nil CashierID sums the whole tenant.
func (q *Queries) SumPaymentsByMethod(ctx context.Context, arg SumPaymentsParams) ([]PaymentTotal, error) {
	rows, err := q.db.Query(ctx,
		`SELECT p.method, COUNT(*), COALESCE(SUM(p.amount), 0)
		FROM order_payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.tenant_id = $1
		  AND ($2::uuid IS NULL OR p.cashier_id = $2)
		  AND p.created_at >= $3 AND p.created_at <= $4
		  AND o.status <> 'VOID'
		GROUP BY p.method
		ORDER BY p.method`,
		arg.TenantID, arg.CashierID, arg.From, arg.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []PaymentTotal
	for rows.Next() {
		var (
			t      PaymentTotal
			method string
			amount pgtype.Numeric
		)
		if err := rows.Scan(&method, &t.Count, &amount); err != nil {
			return nil, err
		}
		t.Method = PaymentMethod(method)
		t.Amount = numericToDecimal(amount)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

type OrderRevenue struct {
	OrderCount     int64           `json:"order_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ServiceCharge  decimal.Decimal `json:"service_charge"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// SumOrderRevenue totals settled orders created in [from, to]. An order is
// settled when it is PAID or COMPLETED and its payments cover the total within
// the 100 rounding tolerance; a table cleared unpaid is not revenue. Voided
// orders never count.
func (q *Queries) SumOrderRevenue(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (OrderRevenue, error) {
	var (
		r                                       OrderRevenue
		subtotal, discount, tax, service, total pgtype.Numeric
	)
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(subtotal), 0), COALESCE(SUM(discount_amount), 0),
			COALESCE(SUM(tax_amount), 0), COALESCE(SUM(service_charge_amount), 0),
			COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE tenant_id = $1
		  AND status IN ('PAID', 'COMPLETED')
		  AND total_paid >= total_amount - 100
		  AND created_at >= $2 AND created_at <= $3`,
		tenantID, from, to,
	).Scan(&r.OrderCount, &subtotal, &discount, &tax, &service, &total)
	if err != nil {
		return OrderRevenue{}, err
	}
	r.Subtotal = numericToDecimal(subtotal)
	r.DiscountAmount = numericToDecimal(discount)
	r.TaxAmount = numericToDecimal(tax)
	r.ServiceCharge = numericToDecimal(service)
	r.TotalAmount = numericToDecimal(total)
	return r, nil
}
