package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
)

// ShiftService runs the cashier drawer ledger.
type ShiftService struct {
	pool     Pool
	newStore NewShiftStore
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewShiftService creates a new ShiftService.
func NewShiftService(pool Pool, newStore NewShiftStore, log logrus.FieldLogger) *ShiftService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ShiftService{
		pool:     pool,
		newStore: newStore,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start opens a shift for the cashier.
func (s *ShiftService) Start(ctx context.Context, tenantID, cashierID uuid.UUID, startCash decimal.Decimal) (*database.Shift, error) {
	if startCash.IsNegative() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetOpenShiftForUpdate(ctx, tenantID, cashierID); err == nil {
		return nil, ErrShiftAlreadyOpen
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get open shift: %w", err)
	}

	shift := database.Shift{
		ID:           uuid.New(),
		TenantID:     tenantID,
		CashierID:    cashierID,
		Status:       database.ShiftStatusOPEN,
		StartCash:    startCash,
		StartTime:    s.now(),
		EndCash:      decimal.Zero,
		CashSales:    decimal.Zero,
		NonCashSales: decimal.Zero,
		ExpectedCash: decimal.Zero,
		Difference:   decimal.Zero,
	}
	if err := store.CreateShift(ctx, shift); err != nil {
		if database.IsUniqueViolation(err, database.ConstraintOpenShift) {
			return nil, ErrShiftAlreadyOpen
		}
		return nil, fmt.Errorf("create shift: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"cashier_id": cashierID,
		"shift_id":   shift.ID,
	}).Info("shift started")
	return &shift, nil
}

// Current returns the cashier's open shift.
func (s *ShiftService) Current(ctx context.Context, tenantID, cashierID uuid.UUID) (*database.Shift, error) {
	shift, err := s.newStore(s.pool).GetOpenShift(ctx, tenantID, cashierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenShift
		}
		return nil, fmt.Errorf("get open shift: %w", err)
	}
	return &shift, nil
}

// End closes the cashier's open shift, reconciling the counted drawer
// against the payments the cashier took since the shift started.
func (s *ShiftService) End(ctx context.Context, tenantID, cashierID uuid.UUID, endCash decimal.Decimal, note string) (*database.Shift, error) {
	if endCash.IsNegative() {
		return nil, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	shift, err := store.GetOpenShiftForUpdate(ctx, tenantID, cashierID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenShift
		}
		return nil, fmt.Errorf("get open shift: %w", err)
	}

	now := s.now()
	totals, err := store.SumPaymentsByMethod(ctx, database.SumPaymentsParams{
		TenantID:  tenantID,
		CashierID: &cashierID,
		From:      shift.StartTime,
		To:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}

	reconcile(&shift, totals, endCash)
	shift.Status = database.ShiftStatusCLOSED
	shift.EndTime = &now
	shift.Note = strings.TrimSpace(note)

	if err := store.CloseShift(ctx, shift); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenShift
		}
		return nil, fmt.Errorf("close shift: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"tenant_id":  tenantID,
		"cashier_id": cashierID,
		"shift_id":   shift.ID,
		"expected":   shift.ExpectedCash.String(),
		"difference": shift.Difference.String(),
	})
	if shift.Difference.IsZero() {
		entry.Info("shift closed")
	} else {
		entry.Warn("shift closed with drawer difference")
	}
	return &shift, nil
}

// reconcile fills the sales and drawer figures of a closing shift. A
// negative difference is a shortage, a positive one an overage.
func reconcile(shift *database.Shift, totals []database.PaymentTotal, endCash decimal.Decimal) {
	cash, nonCash := decimal.Zero, decimal.Zero
	for _, t := range totals {
		if t.Method == database.PaymentMethodCASH {
			cash = cash.Add(t.Amount)
		} else {
			nonCash = nonCash.Add(t.Amount)
		}
	}
	shift.CashSales = cash
	shift.NonCashSales = nonCash
	shift.EndCash = endCash
	shift.ExpectedCash = shift.StartCash.Add(cash)
	shift.Difference = endCash.Sub(shift.ExpectedCash)
}
