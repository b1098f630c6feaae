package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/events"
)

const (
	maxOrderNumberRetries = 3

	// maxLineQuantity caps the merged quantity of one product on an order or
	// a payment.
	maxLineQuantity = 9999
)

// LineRequest is one requested product on create or edit.
type LineRequest struct {
	ProductID string
	Quantity  int32
	Note      string
}

// CreateOrderRequest is the input for opening a check on a table.
type CreateOrderRequest struct {
	TenantID    uuid.UUID
	CreatedBy   uuid.UUID
	TableNumber string
	Notes       string
	PromoCode   string
	Items       []LineRequest
}

// EditOrderRequest replaces the item list of an order. Nil Notes and
// PromoCode keep the current values.
type EditOrderRequest struct {
	TenantID  uuid.UUID
	OrderID   uuid.UUID
	Items     []LineRequest
	Notes     *string
	PromoCode *string
}

type UpdateStatusRequest struct {
	TenantID uuid.UUID
	OrderID  uuid.UUID
	Status   database.OrderStatus
}

type VoidOrderRequest struct {
	TenantID uuid.UUID
	OrderID  uuid.UUID
	VoidedBy uuid.UUID
	Reason   string
}

// OrderServiceConfig carries the collaborators of OrderService.
type OrderServiceConfig struct {
	Products  ProductCatalog
	Discounts DiscountResolver
	Settings  SettingsProvider
	Publisher events.Publisher
	Logger    logrus.FieldLogger
}

// OrderService owns the order aggregate: lines, kitchen tickets, payments
// and the status derived from them. Every mutation locks the order row,
// applies its change in memory and writes the result in one transaction.
type OrderService struct {
	pool      Pool
	newStore  NewOrderStore
	products  ProductCatalog
	discounts DiscountResolver
	settings  SettingsProvider
	publisher events.Publisher
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool Pool, newStore NewOrderStore, cfg OrderServiceConfig) *OrderService {
	s := &OrderService{
		pool:      pool,
		newStore:  newStore,
		products:  cfg.Products,
		discounts: cfg.Discounts,
		settings:  cfg.Settings,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// parsedLine is a validated, merged LineRequest.
type parsedLine struct {
	productID uuid.UUID
	quantity  int32
	note      string
}

// parseLines validates requested lines and merges repeated products, keeping
// the first position and the last non-empty note.
func parseLines(items []LineRequest) ([]parsedLine, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	var out []parsedLine
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
		note := strings.TrimSpace(item.Note)
		if j, ok := index[productID]; ok {
			merged, err := mergeQuantity(out[j].quantity, item.Quantity)
			if err != nil {
				return nil, fmt.Errorf("item[%d]: %w", i, err)
			}
			out[j].quantity = merged
			if note != "" {
				out[j].note = note
			}
			continue
		}
		index[productID] = len(out)
		out = append(out, parsedLine{productID: productID, quantity: item.Quantity, note: note})
	}
	return out, nil
}

// mergeQuantity adds two validated quantities of the same product.
func mergeQuantity(a, b int32) (int32, error) {
	sum := int64(a) + int64(b)
	if sum > maxLineQuantity {
		return 0, ErrQuantityTooLarge
	}
	return int32(sum), nil
}

// resolveTotals prices lines against the tenant's settings and promo code.
func (s *OrderService) resolveTotals(ctx context.Context, tenantID uuid.UUID, lines []database.OrderLine, promoCode string) (orderTotals, error) {
	settings, err := s.settings.Settings(ctx, tenantID)
	if err != nil {
		return orderTotals{}, err
	}

	base := computeTotals(lines, decimal.Zero, settings)
	if promoCode == "" {
		return base, nil
	}
	discount, err := s.discounts.Discount(ctx, tenantID, promoCode, base.Subtotal)
	if err != nil {
		return orderTotals{}, err
	}
	return computeTotals(lines, discount, settings), nil
}

// Create opens an order on a table with its first kitchen ticket. Retries up
// to maxOrderNumberRetries times when two creations race for the same order
// number.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*database.Order, error) {
	table, err := normalizeTable(req.TableNumber)
	if err != nil {
		return nil, err
	}
	parsed, err := parseLines(req.Items)
	if err != nil {
		return nil, err
	}

	lines := make([]database.OrderLine, len(parsed))
	for i, p := range parsed {
		product, err := s.products.Product(ctx, req.TenantID, p.productID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		lines[i] = database.OrderLine{
			Position:  int32(i + 1),
			ProductID: p.productID,
			Quantity:  p.quantity,
			UnitPrice: product.Price,
			Note:      p.note,
			Status:    database.TicketStatusPENDING,
		}
	}

	promoCode := strings.ToUpper(strings.TrimSpace(req.PromoCode))
	totals, err := s.resolveTotals(ctx, req.TenantID, lines, promoCode)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		order, err := s.createOrderTx(ctx, req, table, promoCode, lines, totals)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"tenant_id":    order.TenantID,
				"order_id":     order.ID,
				"order_number": order.OrderNumber,
				"table_number": order.TableNumber,
			}).Info("order created")
			s.publish(ctx, events.TypeNewOrder, order)
			return order, nil
		}
		if database.IsUniqueViolation(err, database.ConstraintOrderNumber) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("create order: %w", lastErr)
}

// createOrderTx checks table occupancy and inserts the order in a single
// transaction. The advisory lock serializes creations on the same table; the
// partial unique index on active orders backs it up.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, table, promoCode string, lines []database.OrderLine, totals orderTotals) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if err := store.LockTable(ctx, req.TenantID, table); err != nil {
		return nil, fmt.Errorf("lock table: %w", err)
	}
	if _, err := store.GetActiveOrderByTableForUpdate(ctx, req.TenantID, table); err == nil {
		return nil, ErrTableOccupied
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check table: %w", err)
	}

	seq, err := store.GetNextOrderSeq(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}

	now := s.now()
	order := database.Order{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		OrderNumber: fmt.Sprintf("ORD-%04d", seq),
		TableNumber: table,
		Status:      database.OrderStatusPENDING,
		Notes:       strings.TrimSpace(req.Notes),
		PromoCode:   promoCode,
		TotalPaid:   decimal.Zero,
		CreatedBy:   req.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	totals.applyTo(&order)

	if err := store.CreateOrder(ctx, order, seq); err != nil {
		if database.IsUniqueViolation(err, database.ConstraintActiveTable) {
			return nil, ErrTableOccupied
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	if err := store.ReplaceOrderLines(ctx, order.ID, lines); err != nil {
		return nil, fmt.Errorf("create order lines: %w", err)
	}

	ticket := database.Ticket{
		Seq:       1,
		Status:    database.TicketStatusPENDING,
		Items:     ticketItems(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.InsertTicket(ctx, order.ID, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	order.Lines = lines
	order.Tickets = []database.Ticket{ticket}
	order.Payments = []database.Payment{}
	return &order, nil
}

func ticketItems(lines []database.OrderLine) []database.TicketItem {
	items := make([]database.TicketItem, len(lines))
	for i, l := range lines {
		items[i] = database.TicketItem{ProductID: l.ProductID, Quantity: l.Quantity, Note: l.Note}
	}
	return items
}

// Edit replaces the order's item list. Only orders without payments in
// PENDING, COOKING, READY or SERVED can be edited. Existing lines keep their
// price snapshot and paid quantity; genuinely new quantity goes to the
// kitchen as a new ticket.
func (s *OrderService) Edit(ctx context.Context, req EditOrderRequest) (*database.Order, error) {
	parsed, err := parseLines(req.Items)
	if err != nil {
		return nil, err
	}

	order, err := s.mutate(ctx, req.TenantID, req.OrderID, func(ctx context.Context, store OrderStore, o *database.Order) error {
		if !isEditable(o) {
			return ErrOrderNotEditable
		}

		lines, delta, err := s.diffLines(ctx, o, parsed)
		if err != nil {
			return err
		}

		if req.Notes != nil {
			o.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.PromoCode != nil {
			o.PromoCode = strings.ToUpper(strings.TrimSpace(*req.PromoCode))
		}
		totals, err := s.resolveTotals(ctx, o.TenantID, lines, o.PromoCode)
		if err != nil {
			return err
		}
		totals.applyTo(o)
		o.Lines = lines

		if len(delta) > 0 {
			now := s.now()
			ticket := database.Ticket{
				Seq:       nextTicketSeq(o.Tickets),
				Status:    database.TicketStatusPENDING,
				Items:     delta,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := store.InsertTicket(ctx, o.ID, ticket); err != nil {
				return fmt.Errorf("create ticket: %w", err)
			}
			o.Tickets = append(o.Tickets, ticket)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": order.TenantID,
		"order_id":  order.ID,
		"status":    order.Status,
	}).Info("order edited")
	s.publish(ctx, events.TypeOrderStatusUpdated, order)
	return order, nil
}

func isEditable(o *database.Order) bool {
	if len(o.Payments) > 0 {
		return false
	}
	switch o.Status {
	case database.OrderStatusPENDING, database.OrderStatusCOOKING,
		database.OrderStatusREADY, database.OrderStatusSERVED:
		return true
	}
	return false
}

// diffLines builds the new line list for an edit and the ticket items for
// quantity the kitchen has not seen yet.
func (s *OrderService) diffLines(ctx context.Context, o *database.Order, parsed []parsedLine) ([]database.OrderLine, []database.TicketItem, error) {
	existing := make(map[uuid.UUID]database.OrderLine, len(o.Lines))
	for _, l := range o.Lines {
		existing[l.ProductID] = l
	}

	lines := make([]database.OrderLine, 0, len(parsed))
	var delta []database.TicketItem
	seen := make(map[uuid.UUID]bool, len(parsed))

	for i, p := range parsed {
		seen[p.productID] = true
		line, ok := existing[p.productID]
		if ok {
			if p.quantity < line.PaidQuantity {
				return nil, nil, fmt.Errorf("item[%d]: %w", i, ErrQuantityBelowPaid)
			}
			if added := p.quantity - line.Quantity; added > 0 {
				delta = append(delta, database.TicketItem{ProductID: p.productID, Quantity: added, Note: p.note})
			}
			line.Quantity = p.quantity
			line.Note = p.note
		} else {
			product, err := s.products.Product(ctx, o.TenantID, p.productID)
			if err != nil {
				return nil, nil, fmt.Errorf("item[%d]: %w", i, err)
			}
			line = database.OrderLine{
				ProductID: p.productID,
				Quantity:  p.quantity,
				UnitPrice: product.Price,
				Note:      p.note,
				Status:    database.TicketStatusPENDING,
			}
			delta = append(delta, database.TicketItem{ProductID: p.productID, Quantity: p.quantity, Note: p.note})
		}
		line.Position = int32(len(lines) + 1)
		lines = append(lines, line)
	}

	for _, l := range o.Lines {
		if !seen[l.ProductID] && l.PaidQuantity > 0 {
			return nil, nil, fmt.Errorf("product %s: %w", l.ProductID, ErrQuantityBelowPaid)
		}
	}
	return lines, delta, nil
}

func nextTicketSeq(tickets []database.Ticket) int32 {
	var max int32
	for _, t := range tickets {
		if t.Seq > max {
			max = t.Seq
		}
	}
	return max + 1
}

// UpdateStatus is the explicit status operation. COOKING, READY and SERVED
// advance every ticket that lags behind the target; CANCELLED abandons an
// order that has no payments. Other statuses are reached through their own
// operations.
func (s *OrderService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*database.Order, error) {
	var target database.TicketStatus
	switch req.Status {
	case database.OrderStatusCOOKING:
		target = database.TicketStatusCOOKING
	case database.OrderStatusREADY:
		target = database.TicketStatusREADY
	case database.OrderStatusSERVED:
		target = database.TicketStatusSERVED
	case database.OrderStatusCANCELLED:
	default:
		return nil, ErrInvalidStatus
	}

	order, err := s.mutate(ctx, req.TenantID, req.OrderID, func(ctx context.Context, store OrderStore, o *database.Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderClosed
		}

		if req.Status == database.OrderStatusCANCELLED {
			if len(o.Payments) > 0 {
				return ErrCancelWithPayments
			}
			o.Status = database.OrderStatusCANCELLED
			return nil
		}

		if len(o.Tickets) == 0 {
			// Pre-ticket orders carry their kitchen status on the order.
			o.Status = req.Status
			for i := range o.Lines {
				if o.Lines[i].Status.Rank() < target.Rank() {
					o.Lines[i].Status = target
				}
			}
			return nil
		}

		now := s.now()
		for i := range o.Tickets {
			t := &o.Tickets[i]
			if t.Status.Rank() >= target.Rank() {
				continue
			}
			if err := store.UpdateTicketStatus(ctx, o.ID, t.Seq, t.Status, target, now); err != nil {
				return fmt.Errorf("advance ticket %d: %w", t.Seq, err)
			}
			t.Status = target
			t.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": order.TenantID,
		"order_id":  order.ID,
		"status":    order.Status,
	}).Info("order status updated")
	s.publish(ctx, events.TypeOrderStatusUpdated, order)
	return order, nil
}

// Void closes an order from any state except VOID. Payments and paid
// quantities stay untouched for audit.
func (s *OrderService) Void(ctx context.Context, req VoidOrderRequest) (*database.Order, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrVoidReason
	}

	order, err := s.mutate(ctx, req.TenantID, req.OrderID, func(_ context.Context, _ OrderStore, o *database.Order) error {
		if o.Status == database.OrderStatusVOID {
			return ErrAlreadyVoid
		}
		now := s.now()
		voidedBy := req.VoidedBy
		o.Status = database.OrderStatusVOID
		o.VoidReason = reason
		o.VoidedBy = &voidedBy
		o.VoidedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id": order.TenantID,
		"order_id":  order.ID,
		"voided_by": req.VoidedBy,
		"reason":    reason,
	}).Warn("order voided")
	s.publish(ctx, events.TypeOrderStatusUpdated, order)
	return order, nil
}

// Get returns the full order snapshot.
func (s *OrderService) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*database.Order, error) {
	store := s.newStore(s.pool)
	o, err := store.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := loadChildren(ctx, store, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrdersRequest filters the order list. Empty fields match everything.
type ListOrdersRequest struct {
	TenantID    uuid.UUID
	Status      database.OrderStatus
	TableNumber string
	Limit       int32
	Offset      int32
}

// List returns order headers, newest first.
func (s *OrderService) List(ctx context.Context, req ListOrdersRequest) ([]database.Order, error) {
	orders, err := s.newStore(s.pool).ListOrders(ctx, database.ListOrdersParams{
		TenantID:    req.TenantID,
		Status:      req.Status,
		TableNumber: canonicalTable(req.TableNumber),
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []database.Order{}
	}
	return orders, nil
}

// mutateFunc applies a change to a locked, fully loaded order. It may write
// child rows (tickets, payments) through store; the order header and lines
// are written by mutate afterwards.
type mutateFunc func(ctx context.Context, store OrderStore, o *database.Order) error

// mutate runs fn against the order under a row lock, re-derives the status
// and persists the header and lines in the same transaction.
func (s *OrderService) mutate(ctx context.Context, tenantID, orderID uuid.UUID, fn mutateFunc) (*database.Order, error) {
	// Begin transaction BEFORE reading order state to prevent TOCTOU races.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	o, err := store.GetOrderForUpdate(ctx, tenantID, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order for update: %w", err)
	}
	if err := loadChildren(ctx, store, &o); err != nil {
		return nil, err
	}

	if err := fn(ctx, store, &o); err != nil {
		return nil, err
	}

	o.TotalPaid = sumPayments(o.Payments)
	o.Status = DeriveStatus(o.Status, o.Tickets, o.Payments, o.TotalAmount)
	applyLineStatuses(o.Lines, o.Tickets)
	o.UpdatedAt = s.now()

	if err := store.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if err := store.ReplaceOrderLines(ctx, o.ID, o.Lines); err != nil {
		return nil, fmt.Errorf("update order lines: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &o, nil
}

func loadChildren(ctx context.Context, store OrderStore, o *database.Order) error {
	lines, err := store.ListOrderLines(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("list order lines: %w", err)
	}
	tickets, err := store.ListTickets(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("list tickets: %w", err)
	}
	payments, err := store.ListPayments(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	o.Lines = nonNil(lines)
	o.Tickets = nonNil(tickets)
	o.Payments = nonNil(payments)
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// publish emits the order snapshot. Failures are logged and never fail the
// committed mutation.
func (s *OrderService) publish(ctx context.Context, eventType string, order *database.Order) {
	evt, err := events.New(eventType, order.TenantID, order)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"tenant_id": order.TenantID,
			"order_id":  order.ID,
			"event":     eventType,
		}).WithError(err).Warn("publish event failed")
	}
}
