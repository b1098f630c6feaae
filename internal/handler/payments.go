package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/service"
)

// PaymentServicer is satisfied by *service.OrderService.
type PaymentServicer interface {
	Pay(ctx context.Context, req service.PayRequest) (*service.PaymentResult, error)
	Payments(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc PaymentServicer
	log logrus.FieldLogger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log}
}

// --- Request / Response types ---

type payItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// addPaymentRequest settles the whole balance when Items is empty. The
// amount is always computed server-side.
type addPaymentRequest struct {
	PaymentMethod  string           `json:"payment_method"`
	AmountReceived string           `json:"amount_received"`
	Items          []payItemRequest `json:"items"`
	Note           string           `json:"note"`
}

type addPaymentResponse struct {
	Order   orderResponse   `json:"order"`
	Payment paymentResponse `json:"payment"`
}

// --- Handlers ---

// Add handles POST /restaurants/{rid}/orders/{id}/payments.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	tenantID, claims, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req addPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}

	received, err := parseMoney(req.AmountReceived)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount_received"})
		return
	}

	items := make([]service.PayItem, len(req.Items))
	for i, it := range req.Items {
		if it.ProductID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "product_id is required"),
			})
			return
		}
		items[i] = service.PayItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	result, err := h.svc.Pay(r.Context(), service.PayRequest{
		TenantID:       tenantID,
		OrderID:        orderID,
		CashierID:      claims.UserID,
		Method:         database.PaymentMethod(req.PaymentMethod),
		AmountReceived: received,
		Items:          items,
		Note:           req.Note,
	})
	if err != nil {
		writeError(w, h.log, "add payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, addPaymentResponse{
		Order:   toOrderResponse(result.Order),
		Payment: toPaymentResponse(*result.Payment),
	})
}

// List handles GET /restaurants/{rid}/orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	payments, err := h.svc.Payments(r.Context(), tenantID, orderID)
	if err != nil {
		writeError(w, h.log, "list payments", err)
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}
