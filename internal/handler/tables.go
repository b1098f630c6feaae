package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/service"
)

// TableServicer is satisfied by *service.OrderService.
type TableServicer interface {
	Tables(ctx context.Context, tenantID uuid.UUID) ([]service.TableView, error)
	ClearTable(ctx context.Context, tenantID uuid.UUID, tableNumber string) (*database.Order, error)
}

type TableHandler struct {
	svc TableServicer
	log logrus.FieldLogger
}

func NewTableHandler(svc TableServicer, log logrus.FieldLogger) *TableHandler {
	return &TableHandler{svc: svc, log: log}
}

// List handles GET /restaurants/{rid}/tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	tables, err := h.svc.Tables(r.Context(), tenantID)
	if err != nil {
		writeError(w, h.log, "list tables", err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// Clear handles POST /restaurants/{rid}/tables/{number}/clear.
func (h *TableHandler) Clear(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	order, err := h.svc.ClearTable(r.Context(), tenantID, chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, h.log, "clear table", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
