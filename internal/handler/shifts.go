package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
)

// ShiftServicer is satisfied by *service.ShiftService.
type ShiftServicer interface {
	Start(ctx context.Context, tenantID, cashierID uuid.UUID, startCash decimal.Decimal) (*database.Shift, error)
	Current(ctx context.Context, tenantID, cashierID uuid.UUID) (*database.Shift, error)
	End(ctx context.Context, tenantID, cashierID uuid.UUID, endCash decimal.Decimal, note string) (*database.Shift, error)
}

// ShiftHandler serves the calling cashier's own shift.
type ShiftHandler struct {
	svc ShiftServicer
	log logrus.FieldLogger
}

func NewShiftHandler(svc ShiftServicer, log logrus.FieldLogger) *ShiftHandler {
	return &ShiftHandler{svc: svc, log: log}
}

type startShiftRequest struct {
	StartCash string `json:"start_cash"`
}

type endShiftRequest struct {
	EndCash string `json:"end_cash"`
	Note    string `json:"note"`
}

// Start handles POST /restaurants/{rid}/shifts.
func (h *ShiftHandler) Start(w http.ResponseWriter, r *http.Request) {
	tenantID, claims, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	var req startShiftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	startCash, err := parseMoney(req.StartCash)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_cash"})
		return
	}

	shift, err := h.svc.Start(r.Context(), tenantID, claims.UserID, startCash)
	if err != nil {
		writeError(w, h.log, "start shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftResponse(shift))
}

// Current handles GET /restaurants/{rid}/shifts/current.
func (h *ShiftHandler) Current(w http.ResponseWriter, r *http.Request) {
	tenantID, claims, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	shift, err := h.svc.Current(r.Context(), tenantID, claims.UserID)
	if err != nil {
		writeError(w, h.log, "current shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftResponse(shift))
}

// End handles POST /restaurants/{rid}/shifts/current/close.
func (h *ShiftHandler) End(w http.ResponseWriter, r *http.Request) {
	tenantID, claims, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	var req endShiftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EndCash == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_cash is required"})
		return
	}
	endCash, err := parseMoney(req.EndCash)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_cash"})
		return
	}

	shift, err := h.svc.End(r.Context(), tenantID, claims.UserID, endCash, req.Note)
	if err != nil {
		writeError(w, h.log, "end shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftResponse(shift))
}
