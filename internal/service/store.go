package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kiwari-pos/floorops/internal/database"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool runs queries outside a transaction and starts new ones.
// Satisfied by *pgxpool.Pool.
type Pool interface {
	database.DBTX
	TxBeginner
}

// OrderStore defines the DB methods needed by the order aggregate.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderSeq(ctx context.Context, tenantID uuid.UUID) (int32, error)
	LockTable(ctx context.Context, tenantID uuid.UUID, tableNumber string) error
	GetActiveOrderByTableForUpdate(ctx context.Context, tenantID uuid.UUID, tableNumber string) (database.Order, error)
	CreateOrder(ctx context.Context, o database.Order, orderSeq int32) error
	GetOrder(ctx context.Context, tenantID, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, tenantID, id uuid.UUID) (database.Order, error)
	UpdateOrder(ctx context.Context, o database.Order) error
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListActiveOrders(ctx context.Context, tenantID uuid.UUID) ([]database.Order, error)

	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error)
	ReplaceOrderLines(ctx context.Context, orderID uuid.UUID, lines []database.OrderLine) error

	ListTickets(ctx context.Context, orderID uuid.UUID) ([]database.Ticket, error)
	InsertTicket(ctx context.Context, orderID uuid.UUID, t database.Ticket) error
	UpdateTicketStatus(ctx context.Context, orderID uuid.UUID, seq int32, from, to database.TicketStatus, at time.Time) error

	ListPayments(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	InsertPayment(ctx context.Context, tenantID, orderID uuid.UUID, p database.Payment) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// ShiftStore defines the DB methods needed by the shift ledger.
type ShiftStore interface {
	GetOpenShift(ctx context.Context, tenantID, cashierID uuid.UUID) (database.Shift, error)
	GetOpenShiftForUpdate(ctx context.Context, tenantID, cashierID uuid.UUID) (database.Shift, error)
	CreateShift(ctx context.Context, s database.Shift) error
	CloseShift(ctx context.Context, s database.Shift) error
	SumPaymentsByMethod(ctx context.Context, arg database.SumPaymentsParams) ([]database.PaymentTotal, error)
}

// NewShiftStore creates a ShiftStore from a DBTX (pool or tx).
type NewShiftStore func(db database.DBTX) ShiftStore

// ReportStore defines the read-only aggregations behind the sales report.
type ReportStore interface {
	SumPaymentsByMethod(ctx context.Context, arg database.SumPaymentsParams) ([]database.PaymentTotal, error)
	SumOrderRevenue(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (database.OrderRevenue, error)
}

// CatalogStore defines the lookups behind the catalog collaborators.
type CatalogStore interface {
	GetProduct(ctx context.Context, tenantID, id uuid.UUID) (database.Product, error)
	GetPromoCode(ctx context.Context, tenantID uuid.UUID, code string) (database.PromoCode, error)
	GetRestaurantSettings(ctx context.Context, tenantID uuid.UUID) (database.RestaurantSettings, error)
}
