package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/events"
	"github.com/kiwari-pos/floorops/internal/logging"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	commits   int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockPool implements Pool. Queries go through the fake store, never here.
type mockPool struct {
	tx  *mockTx
	err error
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tx, nil
}
func (m *mockPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}

// memStore is an in-memory stand-in for *database.Queries. It implements
// OrderStore, ShiftStore, ReportStore and CatalogStore and reproduces the
// unique constraints the service relies on.
type memStore struct {
	mu sync.Mutex

	orders   map[uuid.UUID]database.Order
	seqs     map[uuid.UUID]int32
	lines    map[uuid.UUID][]database.OrderLine
	tickets  map[uuid.UUID][]database.Ticket
	payments map[uuid.UUID][]database.Payment
	shifts   []database.Shift

	products map[uuid.UUID]database.Product
	promos   map[string]database.PromoCode
	settings map[uuid.UUID]database.RestaurantSettings

	// createOrderErrs is consumed one error per CreateOrder call.
	createOrderErrs  []error
	createOrderCalls int
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[uuid.UUID]database.Order),
		seqs:     make(map[uuid.UUID]int32),
		lines:    make(map[uuid.UUID][]database.OrderLine),
		tickets:  make(map[uuid.UUID][]database.Ticket),
		payments: make(map[uuid.UUID][]database.Payment),
		products: make(map[uuid.UUID]database.Product),
		promos:   make(map[string]database.PromoCode),
		settings: make(map[uuid.UUID]database.RestaurantSettings),
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (m *memStore) GetNextOrderSeq(ctx context.Context, tenantID uuid.UUID) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int32
	for id, o := range m.orders {
		if o.TenantID == tenantID && m.seqs[id] > max {
			max = m.seqs[id]
		}
	}
	return max + 1, nil
}

func (m *memStore) LockTable(ctx context.Context, tenantID uuid.UUID, tableNumber string) error {
	return nil
}

func (m *memStore) GetActiveOrderByTableForUpdate(ctx context.Context, tenantID uuid.UUID, tableNumber string) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.TenantID == tenantID && o.TableNumber == tableNumber && o.Status.IsActive() {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *memStore) CreateOrder(ctx context.Context, o database.Order, orderSeq int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createOrderCalls++
	if len(m.createOrderErrs) > 0 {
		err := m.createOrderErrs[0]
		m.createOrderErrs = m.createOrderErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range m.orders {
		if existing.TenantID != o.TenantID {
			continue
		}
		if existing.OrderNumber == o.OrderNumber {
			return uniqueViolation(database.ConstraintOrderNumber)
		}
		if existing.TableNumber == o.TableNumber && existing.Status.IsActive() {
			return uniqueViolation(database.ConstraintActiveTable)
		}
	}
	o.Lines, o.Tickets, o.Payments = nil, nil, nil
	m.orders[o.ID] = o
	m.seqs[o.ID] = orderSeq
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.TenantID != tenantID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, tenantID, id uuid.UUID) (database.Order, error) {
	return m.GetOrder(ctx, tenantID, id)
}

func (m *memStore) UpdateOrder(ctx context.Context, o database.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; !ok {
		return pgx.ErrNoRows
	}
	o.Lines, o.Tickets, o.Payments = nil, nil, nil
	m.orders[o.ID] = o
	return nil
}

func (m *memStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Order
	for _, o := range m.orders {
		if o.TenantID != arg.TenantID {
			continue
		}
		if arg.Status != "" && o.Status != arg.Status {
			continue
		}
		if arg.TableNumber != "" && o.TableNumber != arg.TableNumber {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListActiveOrders(ctx context.Context, tenantID uuid.UUID) ([]database.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Order
	for _, o := range m.orders {
		if o.TenantID == tenantID && o.Status.IsActive() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]database.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.OrderLine(nil), m.lines[orderID]...), nil
}

func (m *memStore) ReplaceOrderLines(ctx context.Context, orderID uuid.UUID, lines []database.OrderLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[orderID] = append([]database.OrderLine(nil), lines...)
	return nil
}

func (m *memStore) ListTickets(ctx context.Context, orderID uuid.UUID) ([]database.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.Ticket(nil), m.tickets[orderID]...), nil
}

func (m *memStore) InsertTicket(ctx context.Context, orderID uuid.UUID, t database.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[orderID] = append(m.tickets[orderID], t)
	return nil
}

func (m *memStore) UpdateTicketStatus(ctx context.Context, orderID uuid.UUID, seq int32, from, to database.TicketStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tickets[orderID] {
		if t.Seq == seq && t.Status == from {
			m.tickets[orderID][i].Status = to
			m.tickets[orderID][i].UpdatedAt = at
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) ListPayments(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.Payment(nil), m.payments[orderID]...), nil
}

func (m *memStore) InsertPayment(ctx context.Context, tenantID, orderID uuid.UUID, p database.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[orderID] = append(m.payments[orderID], p)
	return nil
}

func (m *memStore) GetOpenShift(ctx context.Context, tenantID, cashierID uuid.UUID) (database.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shifts {
		if s.TenantID == tenantID && s.CashierID == cashierID && s.Status == database.ShiftStatusOPEN {
			return s, nil
		}
	}
	return database.Shift{}, pgx.ErrNoRows
}

func (m *memStore) GetOpenShiftForUpdate(ctx context.Context, tenantID, cashierID uuid.UUID) (database.Shift, error) {
	return m.GetOpenShift(ctx, tenantID, cashierID)
}

func (m *memStore) CreateShift(ctx context.Context, s database.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shifts {
		if existing.TenantID == s.TenantID && existing.CashierID == s.CashierID && existing.Status == database.ShiftStatusOPEN {
			return uniqueViolation(database.ConstraintOpenShift)
		}
	}
	m.shifts = append(m.shifts, s)
	return nil
}

func (m *memStore) CloseShift(ctx context.Context, s database.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.shifts {
		if existing.ID == s.ID && existing.Status == database.ShiftStatusOPEN {
			m.shifts[i] = s
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) SumPaymentsByMethod(ctx context.Context, arg database.SumPaymentsParams) ([]database.PaymentTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byMethod := make(map[database.PaymentMethod]*database.PaymentTotal)
	for orderID, payments := range m.payments {
		o := m.orders[orderID]
		if o.TenantID != arg.TenantID || o.Status == database.OrderStatusVOID {
			continue
		}
		for _, p := range payments {
			if arg.CashierID != nil && p.CashierID != *arg.CashierID {
				continue
			}
			if p.CreatedAt.Before(arg.From) || p.CreatedAt.After(arg.To) {
				continue
			}
			t, ok := byMethod[p.Method]
			if !ok {
				t = &database.PaymentTotal{Method: p.Method, Amount: decimal.Zero}
				byMethod[p.Method] = t
			}
			t.Count++
			t.Amount = t.Amount.Add(p.Amount)
		}
	}
	var out []database.PaymentTotal
	for _, t := range byMethod {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out, nil
}

func (m *memStore) SumOrderRevenue(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (database.OrderRevenue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := database.OrderRevenue{
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		ServiceCharge:  decimal.Zero,
		TotalAmount:    decimal.Zero,
	}
	for _, o := range m.orders {
		if o.TenantID != tenantID || o.CreatedAt.Before(from) || o.CreatedAt.After(to) {
			continue
		}
		if o.Status != database.OrderStatusPAID && o.Status != database.OrderStatusCOMPLETED {
			continue
		}
		if o.TotalPaid.LessThan(o.TotalAmount.Sub(PaidTolerance)) {
			continue
		}
		r.OrderCount++
		r.Subtotal = r.Subtotal.Add(o.Subtotal)
		r.DiscountAmount = r.DiscountAmount.Add(o.DiscountAmount)
		r.TaxAmount = r.TaxAmount.Add(o.TaxAmount)
		r.ServiceCharge = r.ServiceCharge.Add(o.ServiceChargeAmount)
		r.TotalAmount = r.TotalAmount.Add(o.TotalAmount)
	}
	return r, nil
}

func (m *memStore) GetProduct(ctx context.Context, tenantID, id uuid.UUID) (database.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return database.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) GetPromoCode(ctx context.Context, tenantID uuid.UUID, code string) (database.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[code]
	if !ok || p.TenantID != tenantID {
		return database.PromoCode{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *memStore) GetRestaurantSettings(ctx context.Context, tenantID uuid.UUID) (database.RestaurantSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[tenantID]
	if !ok {
		return database.RestaurantSettings{}, pgx.ErrNoRows
	}
	return s, nil
}

// --- Test helpers ---

// fixture is one tenant with two products (40,000 and 60,000), 11% tax and
// 5% service, so one of each gives subtotal 100,000 and total 116,000.
type fixture struct {
	t        *testing.T
	store    *memStore
	tx       *mockTx
	recorder *events.Recorder
	svc      *OrderService
	tenantID uuid.UUID
	staffID  uuid.UUID
	productA uuid.UUID
	productB uuid.UUID
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		store:    newMemStore(),
		tx:       &mockTx{},
		recorder: &events.Recorder{},
		tenantID: uuid.New(),
		staffID:  uuid.New(),
		productA: uuid.New(),
		productB: uuid.New(),
		clock:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.store.products[f.productA] = database.Product{ID: f.productA, TenantID: f.tenantID, Name: "Nasi Goreng", Price: decimal.NewFromInt(40000), IsActive: true}
	f.store.products[f.productB] = database.Product{ID: f.productB, TenantID: f.tenantID, Name: "Sate Ayam", Price: decimal.NewFromInt(60000), IsActive: true}
	f.store.settings[f.tenantID] = database.RestaurantSettings{
		TenantID:    f.tenantID,
		TotalTables: 3,
		TaxRate:     decimal.RequireFromString("0.11"),
		ServiceRate: decimal.RequireFromString("0.05"),
	}

	catalog := NewCatalog(f.store, 10)
	f.svc = NewOrderService(&mockPool{tx: f.tx}, func(database.DBTX) OrderStore { return f.store }, OrderServiceConfig{
		Products:  catalog,
		Discounts: catalog,
		Settings:  catalog,
		Publisher: f.recorder,
		Logger:    logging.Discard(),
	})
	f.svc.now = f.now
	return f
}

// now advances the fixture clock by a second on every call.
func (f *fixture) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fixture) item(productID uuid.UUID, qty int32) LineRequest {
	return LineRequest{ProductID: productID.String(), Quantity: qty}
}

func (f *fixture) createOrder(table string, items ...LineRequest) *database.Order {
	f.t.Helper()
	o, err := f.svc.Create(context.Background(), CreateOrderRequest{
		TenantID:    f.tenantID,
		CreatedBy:   f.staffID,
		TableNumber: table,
		Items:       items,
	})
	if err != nil {
		f.t.Fatalf("create order: %v", err)
	}
	return o
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
