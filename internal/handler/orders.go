package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*database.Order, error)
	Edit(ctx context.Context, req service.EditOrderRequest) (*database.Order, error)
	UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (*database.Order, error)
	Void(ctx context.Context, req service.VoidOrderRequest) (*database.Order, error)
	Get(ctx context.Context, tenantID, orderID uuid.UUID) (*database.Order, error)
	List(ctx context.Context, req service.ListOrdersRequest) ([]database.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc OrderServicer
	log logrus.FieldLogger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

// --- Request / Response types ---

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Note      string `json:"note"`
}

type createOrderRequest struct {
	TableNumber string             `json:"table_number"`
	Notes       string             `json:"notes"`
	PromoCode   string             `json:"promo_code"`
	Items       []orderItemRequest `json:"items"`
}

type editOrderRequest struct {
	Items     []orderItemRequest `json:"items"`
	Notes     *string            `json:"notes"`
	PromoCode *string            `json:"promo_code"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type voidOrderRequest struct {
	Reason string `json:"reason"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// --- Handlers ---

// Create handles POST /restaurants/{rid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, claims, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.TableNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_number is required"})
		return
	}
	items, ok := validateItems(w, req.Items)
	if !ok {
		return
	}

	order, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		TenantID:    tenantID,
		CreatedBy:   claims.UserID,
		TableNumber: req.TableNumber,
		Notes:       req.Notes,
		PromoCode:   req.PromoCode,
		Items:       items,
	})
	if err != nil {
		writeError(w, h.log, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// List handles GET /restaurants/{rid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	// Parse pagination
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	req := service.ListOrdersRequest{
		TenantID:    tenantID,
		TableNumber: r.URL.Query().Get("table"),
		Limit:       int32(limit),
		Offset:      int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := database.OrderStatus(s)
		if !isValidOrderStatus(status) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		req.Status = status
	}

	orders, err := h.svc.List(r.Context(), req)
	if err != nil {
		writeError(w, h.log, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /restaurants/{rid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.svc.Get(r.Context(), tenantID, orderID)
	if err != nil {
		writeError(w, h.log, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// EditItems handles PUT /restaurants/{rid}/orders/{id}/items.
// The body is the complete new item list.
func (h *OrderHandler) EditItems(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req editOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	items, ok := validateItems(w, req.Items)
	if !ok {
		return
	}

	order, err := h.svc.Edit(r.Context(), service.EditOrderRequest{
		TenantID:  tenantID,
		OrderID:   orderID,
		Items:     items,
		Notes:     req.Notes,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		writeError(w, h.log, "edit order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), service.UpdateStatusRequest{
		TenantID: tenantID,
		OrderID:  orderID,
		Status:   database.OrderStatus(req.Status),
	})
	if err != nil {
		writeError(w, h.log, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Void handles POST /restaurants/{rid}/orders/{id}/void.
func (h *OrderHandler) Void(w http.ResponseWriter, r *http.Request) {
	tenantID, claims, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req voidOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.svc.Void(r.Context(), service.VoidOrderRequest{
		TenantID: tenantID,
		OrderID:  orderID,
		VoidedBy: claims.UserID,
		Reason:   req.Reason,
	})
	if err != nil {
		writeError(w, h.log, "void order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// --- Helpers ---

func validateItems(w http.ResponseWriter, items []orderItemRequest) ([]service.LineRequest, bool) {
	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return nil, false
	}

	out := make([]service.LineRequest, len(items))
	for i, item := range items {
		if item.ProductID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "product_id is required"),
			})
			return nil, false
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return nil, false
		}
		out[i] = service.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity, Note: item.Note}
	}
	return out, true
}

func isValidOrderStatus(s database.OrderStatus) bool {
	switch s {
	case database.OrderStatusPENDING,
		database.OrderStatusCOOKING,
		database.OrderStatusREADY,
		database.OrderStatusSERVED,
		database.OrderStatusPARTIALPAID,
		database.OrderStatusPAID,
		database.OrderStatusCOMPLETED,
		database.OrderStatusCANCELLED,
		database.OrderStatusVOID:
		return true
	}
	return false
}
