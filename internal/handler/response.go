package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/apperror"
	"github.com/kiwari-pos/floorops/internal/auth"
	"github.com/kiwari-pos/floorops/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to encode JSON response")
	}
}

// writeError renders domain errors with their own status and message.
// Anything else is logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, op string, err error) {
	if appErr, ok := apperror.As(err); ok {
		writeJSON(w, appErr.Code, map[string]string{"error": err.Error()})
		return
	}
	log.WithError(err).Error(op)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// tenantAndClaims reads the {rid} path parameter and the session claims.
// It writes the error response and returns ok=false on failure.
func tenantAndClaims(w http.ResponseWriter, r *http.Request) (uuid.UUID, *auth.Claims, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return uuid.Nil, nil, false
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return uuid.Nil, nil, false
	}
	return tenantID, claims, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return orderID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// parseMoney parses an optional decimal string; empty means zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}
