package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const shiftColumns = `id, tenant_id, cashier_id, status, start_cash, start_time, end_cash, end_time,
	cash_sales, non_cash_sales, expected_cash, difference, note`

func scanShift(row pgx.Row) (Shift, error) {
	var (
		s                                                      Shift
		status                                                 string
		startCash, endCash, cashSales, nonCash, expected, diff pgtype.Numeric
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.CashierID, &status, &startCash, &s.StartTime, &endCash, &s.EndTime,
		&cashSales, &nonCash, &expected, &diff, &s.Note)
	if err != nil {
		return Shift{}, err
	}
	s.Status = ShiftStatus(status)
	s.StartCash = numericToDecimal(startCash)
	s.EndCash = numericToDecimal(endCash)
	s.CashSales = numericToDecimal(cashSales)
	s.NonCashSales = numericToDecimal(nonCash)
	s.ExpectedCash = numericToDecimal(expected)
	s.Difference = numericToDecimal(diff)
	return s, nil
}

// GetOpenShiftForUpdate returns the cashier's OPEN shift, locked.
func (q *Queries) GetOpenShiftForUpdate(ctx context.Context, tenantID, cashierID uuid.UUID) (Shift, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM shifts
		WHERE tenant_id = $1 AND cashier_id = $2 AND status = 'OPEN'
		FOR UPDATE`,
		tenantID, cashierID,
	)
	return scanShift(row)
}

func (q *Queries) GetOpenShift(ctx context.Context, tenantID, cashierID uuid.UUID) (Shift, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM shifts
		WHERE tenant_id = $1 AND cashier_id = $2 AND status = 'OPEN'`,
		tenantID, cashierID,
	)
	return scanShift(row)
}

func (q *Queries) CreateShift(ctx context.Context, s Shift) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO shifts (id, tenant_id, cashier_id, status, start_cash, start_time, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.TenantID, s.CashierID, string(s.Status), decimalToNumeric(s.StartCash), s.StartTime, s.Note,
	)
	return err
}

// CloseShift writes the reconciliation figures and flips the shift to
// CLOSED. Only an OPEN shift can be closed.
func (q *Queries) CloseShift(ctx context.Context, s Shift) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE shifts SET
			status = 'CLOSED', end_cash = $3, end_time = $4,
			cash_sales = $5, non_cash_sales = $6, expected_cash = $7, difference = $8, note = $9
		WHERE tenant_id = $1 AND id = $2 AND status = 'OPEN'`,
		s.TenantID, s.ID, decimalToNumeric(s.EndCash), s.EndTime,
		decimalToNumeric(s.CashSales), decimalToNumeric(s.NonCashSales),
		decimalToNumeric(s.ExpectedCash), decimalToNumeric(s.Difference), s.Note,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
