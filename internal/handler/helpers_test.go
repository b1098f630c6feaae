package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kiwari-pos/floorops/internal/auth"
	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/middleware"
	"github.com/kiwari-pos/floorops/internal/service"
)

const testJWTSecret = "test-secret"

// --- Mock services ---

type mockOrderService struct {
	createFn       func(ctx context.Context, req service.CreateOrderRequest) (*database.Order, error)
	editFn         func(ctx context.Context, req service.EditOrderRequest) (*database.Order, error)
	updateStatusFn func(ctx context.Context, req service.UpdateStatusRequest) (*database.Order, error)
	voidFn         func(ctx context.Context, req service.VoidOrderRequest) (*database.Order, error)
	getFn          func(ctx context.Context, tenantID, orderID uuid.UUID) (*database.Order, error)
	listFn         func(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
	ticketsFn      func(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Ticket, error)
	updateTicketFn func(ctx context.Context, req service.UpdateTicketRequest) (*database.Order, error)
	queueFn        func(ctx context.Context, tenantID uuid.UUID) ([]service.QueuedTicket, error)
	payFn          func(ctx context.Context, req service.PayRequest) (*service.PaymentResult, error)
	paymentsFn     func(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Payment, error)
	tablesFn       func(ctx context.Context, tenantID uuid.UUID) ([]service.TableView, error)
	clearTableFn   func(ctx context.Context, tenantID uuid.UUID, tableNumber string) (*database.Order, error)
}

func (m *mockOrderService) Create(ctx context.Context, req service.CreateOrderRequest) (*database.Order, error) {
	return m.createFn(ctx, req)
}

func (m *mockOrderService) Edit(ctx context.Context, req service.EditOrderRequest) (*database.Order, error) {
	return m.editFn(ctx, req)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (*database.Order, error) {
	return m.updateStatusFn(ctx, req)
}

func (m *mockOrderService) Void(ctx context.Context, req service.VoidOrderRequest) (*database.Order, error) {
	return m.voidFn(ctx, req)
}

func (m *mockOrderService) Get(ctx context.Context, tenantID, orderID uuid.UUID) (*database.Order, error) {
	return m.getFn(ctx, tenantID, orderID)
}

func (m *mockOrderService) List(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error) {
	return m.listFn(ctx, req)
}

func (m *mockOrderService) Tickets(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Ticket, error) {
	return m.ticketsFn(ctx, tenantID, orderID)
}

func (m *mockOrderService) UpdateTicketStatus(ctx context.Context, req service.UpdateTicketRequest) (*database.Order, error) {
	return m.updateTicketFn(ctx, req)
}

func (m *mockOrderService) KitchenQueue(ctx context.Context, tenantID uuid.UUID) ([]service.QueuedTicket, error) {
	return m.queueFn(ctx, tenantID)
}

func (m *mockOrderService) Pay(ctx context.Context, req service.PayRequest) (*service.PaymentResult, error) {
	return m.payFn(ctx, req)
}

func (m *mockOrderService) Payments(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Payment, error) {
	return m.paymentsFn(ctx, tenantID, orderID)
}

func (m *mockOrderService) Tables(ctx context.Context, tenantID uuid.UUID) ([]service.TableView, error) {
	return m.tablesFn(ctx, tenantID)
}

func (m *mockOrderService) ClearTable(ctx context.Context, tenantID uuid.UUID, tableNumber string) (*database.Order, error) {
	return m.clearTableFn(ctx, tenantID, tableNumber)
}

// --- Router / request helpers ---

// tenantRouter mounts routes under /restaurants/{rid} behind the same
// authentication and tenant checks as production.
func tenantRouter(mount func(r chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/restaurants/{rid}", func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Use(middleware.RequireTenant)
		mount(r)
	})
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	// Generate a real JWT token from claims
	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.TenantID, claims.Role)
	require.NoError(t, err)

	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case string:
		req = httptest.NewRequest(method, path, bytes.NewBufferString(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

// --- Helpers to build test data ---

func testClaims(tenantID uuid.UUID, role string) *auth.Claims {
	return &auth.Claims{
		UserID:   uuid.New(),
		TenantID: tenantID,
		Role:     role,
	}
}

func testOrder(tenantID uuid.UUID) *database.Order {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	productID := uuid.New()
	return &database.Order{
		ID:                  uuid.New(),
		TenantID:            tenantID,
		OrderNumber:         "ORD-0001",
		TableNumber:         "5",
		Status:              database.OrderStatusPENDING,
		Subtotal:            decimal.NewFromInt(100000),
		DiscountAmount:      decimal.Zero,
		TaxAmount:           decimal.NewFromInt(11000),
		ServiceChargeAmount: decimal.NewFromInt(5000),
		TotalAmount:         decimal.NewFromInt(116000),
		TotalPaid:           decimal.Zero,
		CreatedBy:           uuid.New(),
		CreatedAt:           now,
		UpdatedAt:           now,
		Lines: []database.OrderLine{
			{Position: 1, ProductID: productID, Quantity: 2, UnitPrice: decimal.NewFromInt(50000), Status: database.TicketStatusPENDING},
		},
		Tickets: []database.Ticket{
			{Seq: 1, Status: database.TicketStatusPENDING, Items: []database.TicketItem{{ProductID: productID, Quantity: 2}}, CreatedAt: now, UpdatedAt: now},
		},
		Payments: []database.Payment{},
	}
}

func jsonDecode(b []byte, v interface{}) error {
	return json.Unmarshal(b, v)
}
