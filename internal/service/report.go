package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiwari-pos/floorops/internal/database"
)

// SalesReport summarizes settled revenue over a window. Voided orders are
// excluded from every figure.
type SalesReport struct {
	From           time.Time               `json:"from"`
	To             time.Time               `json:"to"`
	Revenue        database.OrderRevenue   `json:"revenue"`
	Payments       []database.PaymentTotal `json:"payments"`
	TotalCollected decimal.Decimal         `json:"total_collected"`
}

type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// Sales builds the report for [from, to].
func (s *ReportService) Sales(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*SalesReport, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	revenue, err := s.store.SumOrderRevenue(ctx, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum order revenue: %w", err)
	}
	payments, err := s.store.SumPaymentsByMethod(ctx, database.SumPaymentsParams{
		TenantID: tenantID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	if payments == nil {
		payments = []database.PaymentTotal{}
	}

	collected := decimal.Zero
	for _, p := range payments {
		collected = collected.Add(p.Amount)
	}
	return &SalesReport{
		From:           from,
		To:             to,
		Revenue:        revenue,
		Payments:       payments,
		TotalCollected: collected,
	}, nil
}
