package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPENDING     OrderStatus = "PENDING"
	OrderStatusCOOKING     OrderStatus = "COOKING"
	OrderStatusREADY       OrderStatus = "READY"
	OrderStatusSERVED      OrderStatus = "SERVED"
	OrderStatusPARTIALPAID OrderStatus = "PARTIAL_PAID"
	OrderStatusPAID        OrderStatus = "PAID"
	OrderStatusCOMPLETED   OrderStatus = "COMPLETED"
	OrderStatusCANCELLED   OrderStatus = "CANCELLED"
	OrderStatusVOID        OrderStatus = "VOID"
)

// IsTerminal reports whether no further mutation (other than void) applies.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCOMPLETED, OrderStatusCANCELLED, OrderStatusVOID:
		return true
	}
	return false
}

// IsActive reports whether the order still occupies its table.
func (s OrderStatus) IsActive() bool {
	return !s.IsTerminal()
}

type TicketStatus string

const (
	TicketStatusPENDING   TicketStatus = "PENDING"
	TicketStatusCOOKING   TicketStatus = "COOKING"
	TicketStatusREADY     TicketStatus = "READY"
	TicketStatusSERVED    TicketStatus = "SERVED"
	TicketStatusCOMPLETED TicketStatus = "COMPLETED"
)

// Rank orders ticket statuses by kitchen progress. SERVED and COMPLETED
// share the terminal rank.
func (s TicketStatus) Rank() int {
	switch s {
	case TicketStatusPENDING:
		return 0
	case TicketStatusCOOKING:
		return 1
	case TicketStatusREADY:
		return 2
	case TicketStatusSERVED, TicketStatusCOMPLETED:
		return 3
	}
	return -1
}

func (s TicketStatus) IsTerminal() bool {
	return s.Rank() == 3
}

type PaymentMethod string

const (
	PaymentMethodCASH         PaymentMethod = "CASH"
	PaymentMethodBANKTRANSFER PaymentMethod = "BANK_TRANSFER"
	PaymentMethodQRIS         PaymentMethod = "QRIS"
)

type PaymentProvider string

const (
	PaymentProviderMANUAL PaymentProvider = "MANUAL"
)

type ShiftStatus string

const (
	ShiftStatusOPEN   ShiftStatus = "OPEN"
	ShiftStatusCLOSED ShiftStatus = "CLOSED"
)

type DiscountType string

const (
	DiscountTypePERCENTAGE  DiscountType = "PERCENTAGE"
	DiscountTypeFIXEDAMOUNT DiscountType = "FIXED_AMOUNT"
)

// Order is the dine-in check aggregate. Lines, Tickets and Payments are
// loaded from their own tables; Tickets and Payments are append-only.
type Order struct {
	ID                  uuid.UUID       `json:"id"`
	TenantID            uuid.UUID       `json:"tenant_id"`
	OrderNumber         string          `json:"order_number"`
	TableNumber         string          `json:"table_number"`
	Status              OrderStatus     `json:"status"`
	Notes               string          `json:"notes,omitempty"`
	PromoCode           string          `json:"promo_code,omitempty"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	ServiceChargeAmount decimal.Decimal `json:"service_charge_amount"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	TotalPaid           decimal.Decimal `json:"total_paid"`
	VoidReason          string          `json:"void_reason,omitempty"`
	VoidedBy            *uuid.UUID      `json:"voided_by,omitempty"`
	VoidedAt            *time.Time      `json:"voided_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	CreatedBy           uuid.UUID       `json:"created_by"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Lines    []OrderLine `json:"items"`
	Tickets  []Ticket    `json:"tickets"`
	Payments []Payment   `json:"payments"`
}

// OrderLine is one distinct product on the order.
type OrderLine struct {
	Position     int32           `json:"position"`
	ProductID    uuid.UUID       `json:"product_id"`
	Quantity     int32           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Note         string          `json:"note,omitempty"`
	Status       TicketStatus    `json:"status"`
	PaidQuantity int32           `json:"paid_quantity"`
}

// Ticket is a frozen kitchen work order. Seq starts at 1 and increases by
// one per send; Legacy marks the display-only ticket of pre-ticket orders.
type Ticket struct {
	Seq       int32        `json:"seq"`
	Status    TicketStatus `json:"status"`
	Items     []TicketItem `json:"items"`
	Legacy    bool         `json:"legacy,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type TicketItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Note      string    `json:"note,omitempty"`
}

// Payment is an immutable settlement record.
type Payment struct {
	Seq                int32           `json:"seq"`
	Amount             decimal.Decimal `json:"amount"`
	Method             PaymentMethod   `json:"method"`
	Provider           PaymentProvider `json:"provider"`
	CashierID          uuid.UUID       `json:"cashier_id"`
	AmountReceived     decimal.Decimal `json:"amount_received"`
	ChangeAmount       decimal.Decimal `json:"change_amount"`
	RoundingAdjustment decimal.Decimal `json:"rounding_adjustment"`
	Items              []PaymentItem   `json:"items,omitempty"`
	Note               string          `json:"note,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type PaymentItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

type Shift struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	CashierID    uuid.UUID       `json:"cashier_id"`
	Status       ShiftStatus     `json:"status"`
	StartCash    decimal.Decimal `json:"start_cash"`
	StartTime    time.Time       `json:"start_time"`
	EndCash      decimal.Decimal `json:"end_cash"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	CashSales    decimal.Decimal `json:"cash_sales"`
	NonCashSales decimal.Decimal `json:"non_cash_sales"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	Difference   decimal.Decimal `json:"difference"`
	Note         string          `json:"note,omitempty"`
}

type Product struct {
	ID       uuid.UUID       `json:"id"`
	TenantID uuid.UUID       `json:"tenant_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	IsActive bool            `json:"is_active"`
}

type PromoCode struct {
	TenantID     uuid.UUID       `json:"tenant_id"`
	Code         string          `json:"code"`
	DiscountType DiscountType    `json:"discount_type"`
	Value        decimal.Decimal `json:"value"`
	IsActive     bool            `json:"is_active"`
}

type RestaurantSettings struct {
	TenantID    uuid.UUID       `json:"tenant_id"`
	TotalTables int32           `json:"total_tables"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	ServiceRate decimal.Decimal `json:"service_rate"`
}

// PaymentTotal is one method bucket of a payment aggregation.
type PaymentTotal struct {
	Method PaymentMethod   `json:"method"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}
