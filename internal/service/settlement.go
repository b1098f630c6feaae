package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/events"
)

// PayItem is one product and quantity settled by a split payment.
type PayItem struct {
	ProductID string
	Quantity  int32
}

// PayRequest settles an order. Empty Items pays the whole remaining balance.
type PayRequest struct {
	TenantID       uuid.UUID
	OrderID        uuid.UUID
	CashierID      uuid.UUID
	Method         database.PaymentMethod
	AmountReceived decimal.Decimal
	Items          []PayItem
	Note           string
}

// PaymentResult is the order after settlement plus the appended payment.
type PaymentResult struct {
	Order   *database.Order   `json:"order"`
	Payment *database.Payment `json:"payment"`
}

// Pay records a full or split payment against an order. The amount is
// computed here, never taken from the caller.
func (s *OrderService) Pay(ctx context.Context, req PayRequest) (*PaymentResult, error) {
	if !validMethod(req.Method) {
		return nil, ErrInvalidPaymentMethod
	}
	requested, err := parsePayItems(req.Items)
	if err != nil {
		return nil, err
	}

	var payment database.Payment
	order, err := s.mutate(ctx, req.TenantID, req.OrderID, func(ctx context.Context, store OrderStore, o *database.Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderClosed
		}
		remaining := o.TotalAmount.Sub(o.TotalPaid)
		if o.Status == database.OrderStatusPAID || !remaining.IsPositive() {
			return ErrNothingToPay
		}

		var (
			amountDue decimal.Decimal
			items     []database.PaymentItem
		)
		if len(requested) == 0 {
			amountDue = remaining
			for i := range o.Lines {
				o.Lines[i].PaidQuantity = o.Lines[i].Quantity
			}
		} else {
			amountDue, items, err = allocateSplit(o, requested)
			if err != nil {
				return err
			}
		}

		p, err := tender(req.Method, amountDue, req.AmountReceived)
		if err != nil {
			return err
		}
		p.Seq = int32(len(o.Payments) + 1)
		p.Provider = database.PaymentProviderMANUAL
		p.CashierID = req.CashierID
		p.Items = items
		p.Note = strings.TrimSpace(req.Note)
		p.CreatedAt = s.now()

		if err := store.InsertPayment(ctx, o.TenantID, o.ID, p); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		o.Payments = append(o.Payments, p)
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":  order.TenantID,
		"order_id":   order.ID,
		"payment":    payment.Seq,
		"method":     payment.Method,
		"amount":     payment.Amount.String(),
		"total_paid": order.TotalPaid.String(),
		"status":     order.Status,
	}).Info("payment recorded")
	s.publish(ctx, events.TypeOrderPaid, order)
	return &PaymentResult{Order: order, Payment: &payment}, nil
}

// Payments lists an order's payments, including those of voided orders.
func (s *OrderService) Payments(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Payment, error) {
	o, err := s.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	return o.Payments, nil
}

func validMethod(m database.PaymentMethod) bool {
	switch m {
	case database.PaymentMethodCASH, database.PaymentMethodBANKTRANSFER, database.PaymentMethodQRIS:
		return true
	}
	return false
}

type payLine struct {
	productID uuid.UUID
	quantity  int32
}

func parsePayItems(items []PayItem) ([]payLine, error) {
	var out []payLine
	index := make(map[uuid.UUID]int)
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrQuantityTooLarge)
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidProductID)
		}
		if j, ok := index[productID]; ok {
			merged, err := mergeQuantity(out[j].quantity, item.Quantity)
			if err != nil {
				return nil, fmt.Errorf("item[%d]: %w", i, err)
			}
			out[j].quantity = merged
			continue
		}
		index[productID] = len(out)
		out = append(out, payLine{productID: productID, quantity: item.Quantity})
	}
	return out, nil
}

// allocateSplit prices the requested quantities at their share of the
// subtotal applied to the order total, and marks them paid on o. When the
// request settles the last unpaid quantity the remaining balance is charged
// instead, so rounding drift lands on the final payment.
func allocateSplit(o *database.Order, requested []payLine) (decimal.Decimal, []database.PaymentItem, error) {
	lineIdx := make(map[uuid.UUID]int, len(o.Lines))
	for i, l := range o.Lines {
		lineIdx[l.ProductID] = i
	}

	amountDue := decimal.Zero
	items := make([]database.PaymentItem, 0, len(requested))
	for i, r := range requested {
		idx, ok := lineIdx[r.productID]
		if !ok {
			return decimal.Zero, nil, fmt.Errorf("item[%d]: %w", i, ErrPaymentItemNotFound)
		}
		if r.quantity <= 0 {
			return decimal.Zero, nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		line := &o.Lines[idx]
		if r.quantity > line.Quantity-line.PaidQuantity {
			return decimal.Zero, nil, fmt.Errorf("item[%d]: %w", i, ErrExceedsUnpaid)
		}

		amount := allocate(line.UnitPrice, r.quantity, o.Subtotal, o.TotalAmount)
		amountDue = amountDue.Add(amount)
		line.PaidQuantity += r.quantity
		items = append(items, database.PaymentItem{ProductID: r.productID, Quantity: r.quantity, Amount: amount})
	}

	remaining := o.TotalAmount.Sub(o.TotalPaid)
	if fullyPaid(o.Lines) || amountDue.GreaterThan(remaining) {
		amountDue = remaining
	}
	return amountDue, items, nil
}

// allocate returns round(unitPrice * qty / subtotal * total). Multiplying
// before dividing keeps the result exact for integral amounts.
func allocate(unitPrice decimal.Decimal, qty int32, subtotal, total decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	lineValue := unitPrice.Mul(decimal.NewFromInt32(qty))
	return lineValue.Mul(total).Div(subtotal).Round(0)
}

func fullyPaid(lines []database.OrderLine) bool {
	for _, l := range lines {
		if l.PaidQuantity < l.Quantity {
			return false
		}
	}
	return true
}

// tender applies cash rounding and the sufficiency check, returning a
// payment with its money fields filled in. Non-cash payments are verified
// outside the system and record the amount due as received.
func tender(method database.PaymentMethod, amountDue, received decimal.Decimal) (database.Payment, error) {
	if received.IsNegative() {
		return database.Payment{}, ErrInvalidAmount
	}
	if method != database.PaymentMethodCASH {
		if !amountDue.IsPositive() {
			return database.Payment{}, ErrNothingToPay
		}
		return database.Payment{
			Method:             method,
			Amount:             amountDue,
			AmountReceived:     amountDue,
			ChangeAmount:       decimal.Zero,
			RoundingAdjustment: decimal.Zero,
		}, nil
	}

	rounded := roundCash(amountDue)
	if !rounded.IsPositive() {
		return database.Payment{}, ErrNothingToPay
	}
	if received.LessThan(rounded) {
		return database.Payment{}, ErrInsufficientCash
	}
	return database.Payment{
		Method:             method,
		Amount:             rounded,
		AmountReceived:     received,
		ChangeAmount:       received.Sub(rounded),
		RoundingAdjustment: rounded.Sub(amountDue),
	}, nil
}

// roundCash rounds to the nearest 100, half away from zero.
func roundCash(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(-2)
}
