package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/service"
)

// KitchenServicer is satisfied by *service.OrderService.
type KitchenServicer interface {
	Tickets(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Ticket, error)
	UpdateTicketStatus(ctx context.Context, req service.UpdateTicketRequest) (*database.Order, error)
	KitchenQueue(ctx context.Context, tenantID uuid.UUID) ([]service.QueuedTicket, error)
}

// KitchenHandler serves ticket reads and kitchen progress updates.
type KitchenHandler struct {
	svc KitchenServicer
	log logrus.FieldLogger
}

func NewKitchenHandler(svc KitchenServicer, log logrus.FieldLogger) *KitchenHandler {
	return &KitchenHandler{svc: svc, log: log}
}

type updateTicketRequest struct {
	Status string `json:"status"`
}

// Tickets handles GET /restaurants/{rid}/orders/{id}/tickets.
func (h *KitchenHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	tickets, err := h.svc.Tickets(r.Context(), tenantID, orderID)
	if err != nil {
		writeError(w, h.log, "list tickets", err)
		return
	}

	resp := make([]ticketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = toTicketResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /restaurants/{rid}/orders/{id}/tickets/{seq}/status.
func (h *KitchenHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	seq, err := strconv.ParseInt(chi.URLParam(r, "seq"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket seq"})
		return
	}

	var req updateTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.UpdateTicketStatus(r.Context(), service.UpdateTicketRequest{
		TenantID: tenantID,
		OrderID:  orderID,
		Seq:      int32(seq),
		Status:   database.TicketStatus(req.Status),
	})
	if err != nil {
		writeError(w, h.log, "update ticket status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Queue handles GET /restaurants/{rid}/kitchen/tickets.
func (h *KitchenHandler) Queue(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	queue, err := h.svc.KitchenQueue(r.Context(), tenantID)
	if err != nil {
		writeError(w, h.log, "kitchen queue", err)
		return
	}

	resp := make([]queuedTicketResponse, len(queue))
	for i, q := range queue {
		resp[i] = queuedTicketResponse{
			OrderID:        q.OrderID,
			OrderNumber:    q.OrderNumber,
			TableNumber:    q.TableNumber,
			ticketResponse: toTicketResponse(q.Ticket),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
