package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/service"
)

// ReportServicer is satisfied by *service.ReportService.
type ReportServicer interface {
	Sales(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*service.SalesReport, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	svc ReportServicer
	log logrus.FieldLogger
	loc *time.Location
	now func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Dates without a time part
// are read in Asia/Jakarta.
func NewReportsHandler(svc ReportServicer, log logrus.FieldLogger) *ReportsHandler {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		// Fallback to FixedZone if tzdata is missing
		loc = time.FixedZone("WIB", 7*3600)
	}
	return &ReportsHandler{svc: svc, log: log, loc: loc, now: time.Now}
}

// Sales handles GET /restaurants/{rid}/reports/sales?from=&to=.
func (h *ReportsHandler) Sales(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := tenantAndClaims(w, r)
	if !ok {
		return
	}

	from, to, err := h.parseRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	report, err := h.svc.Sales(r.Context(), tenantID, from, to)
	if err != nil {
		writeError(w, h.log, "sales report", err)
		return
	}
	writeJSON(w, http.StatusOK, toSalesReportResponse(report))
}

// parseRange reads from/to as RFC 3339 timestamps or YYYY-MM-DD dates. A date
// in "to" covers the whole day. The default is today so far.
func (h *ReportsHandler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	now := h.now().In(h.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	to := now

	if s := r.URL.Query().Get("from"); s != "" {
		t, _, err := h.parseBound(s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
		}
		from = t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, dateOnly, err := h.parseBound(s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		to = t
	}
	return from, to, nil
}

func (h *ReportsHandler) parseBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, h.loc)
	if err != nil {
		return time.Time{}, false, errors.New("use YYYY-MM-DD or RFC 3339")
	}
	return t, true, nil
}
