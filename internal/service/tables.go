package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/events"
)

type TableStatus string

const (
	TableStatusAVAILABLE   TableStatus = "AVAILABLE"
	TableStatusOCCUPIED    TableStatus = "OCCUPIED"
	TableStatusSERVED      TableStatus = "SERVED"
	TableStatusPARTIALPAID TableStatus = "PARTIAL_PAID"
	TableStatusDIRTY       TableStatus = "DIRTY"
)

// TableView is one cell of the floor grid.
type TableView struct {
	Number      int         `json:"number"`
	Status      TableStatus `json:"status"`
	OrderID     *uuid.UUID  `json:"order_id,omitempty"`
	OrderNumber string      `json:"order_number,omitempty"`
}

// canonicalTable trims a table label and rewrites numeric labels in their
// plain decimal form, so "02" and "2" name the same table.
func canonicalTable(label string) string {
	label = strings.TrimSpace(label)
	if n, err := strconv.Atoi(label); err == nil {
		return strconv.Itoa(n)
	}
	return label
}

// normalizeTable is canonicalTable for labels that open or clear a table.
func normalizeTable(label string) (string, error) {
	table := canonicalTable(label)
	if table == "" {
		return "", ErrTableRequired
	}
	if n, err := strconv.Atoi(table); err == nil && n < 1 {
		return "", ErrInvalidTable
	}
	return table, nil
}

// ProjectTables builds the grid for tables 1..total from the active orders.
// Orders on tables outside the range are left out of the grid.
func ProjectTables(total int, orders []database.Order) []TableView {
	if total < 0 {
		total = 0
	}
	grid := make([]TableView, total)
	for i := range grid {
		grid[i] = TableView{Number: i + 1, Status: TableStatusAVAILABLE}
	}

	for _, o := range orders {
		if !o.Status.IsActive() {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(o.TableNumber))
		if err != nil || n < 1 || n > total {
			continue
		}
		cell := &grid[n-1]
		if cell.OrderID != nil {
			continue
		}
		id := o.ID
		cell.OrderID = &id
		cell.OrderNumber = o.OrderNumber
		cell.Status = tableStatus(o.Status)
	}
	return grid
}

func tableStatus(s database.OrderStatus) TableStatus {
	switch s {
	case database.OrderStatusPAID:
		return TableStatusDIRTY
	case database.OrderStatusPARTIALPAID:
		return TableStatusPARTIALPAID
	case database.OrderStatusSERVED:
		return TableStatusSERVED
	}
	return TableStatusOCCUPIED
}

// Tables returns the tenant's floor grid.
func (s *OrderService) Tables(ctx context.Context, tenantID uuid.UUID) ([]TableView, error) {
	settings, err := s.settings.Settings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	orders, err := s.newStore(s.pool).ListActiveOrders(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	return ProjectTables(int(settings.TotalTables), orders), nil
}

// ClearTable completes the table's active order and frees the number.
// Payment completeness is not checked.
func (s *OrderService) ClearTable(ctx context.Context, tenantID uuid.UUID, tableNumber string) (*database.Order, error) {
	table, err := normalizeTable(tableNumber)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	o, err := store.GetActiveOrderByTableForUpdate(ctx, tenantID, table)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveOrder
		}
		return nil, fmt.Errorf("get active order: %w", err)
	}
	if err := loadChildren(ctx, store, &o); err != nil {
		return nil, err
	}

	now := s.now()
	o.Status = database.OrderStatusCOMPLETED
	o.CompletedAt = &now
	o.UpdatedAt = now
	if err := store.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":    o.TenantID,
		"order_id":     o.ID,
		"table_number": table,
	}).Info("table cleared")
	s.publish(ctx, events.TypeTableCleared, &o)
	return &o, nil
}
