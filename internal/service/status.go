package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiwari-pos/floorops/internal/database"
)

// PaidTolerance absorbs cash rounding when deciding whether an order is paid.
var PaidTolerance = decimal.NewFromInt(100)

// DeriveStatus computes an order's status from its tickets and payments.
// It is the only place non-terminal order statuses are decided.
//
// Terminal statuses are sticky. Once any payment exists the order is PAID or
// PARTIAL_PAID. Otherwise the status follows the least advanced ticket,
// except that all tickets at READY or beyond make the order READY (SERVED if
// every ticket is served). Orders without tickets predate ticketing and keep
// their kitchen status.
func DeriveStatus(current database.OrderStatus, tickets []database.Ticket, payments []database.Payment, totalAmount decimal.Decimal) database.OrderStatus {
	if current.IsTerminal() {
		return current
	}

	if len(payments) > 0 {
		paid := sumPayments(payments)
		if paid.GreaterThanOrEqual(totalAmount.Sub(PaidTolerance)) {
			return database.OrderStatusPAID
		}
		return database.OrderStatusPARTIALPAID
	}

	if len(tickets) == 0 {
		switch current {
		case database.OrderStatusPENDING, database.OrderStatusCOOKING,
			database.OrderStatusREADY, database.OrderStatusSERVED:
			return current
		}
		return database.OrderStatusPENDING
	}

	least := tickets[0].Status
	for _, t := range tickets[1:] {
		if t.Status.Rank() < least.Rank() {
			least = t.Status
		}
	}

	switch {
	case least.IsTerminal():
		return database.OrderStatusSERVED
	case least == database.TicketStatusREADY:
		return database.OrderStatusREADY
	case least == database.TicketStatusCOOKING:
		return database.OrderStatusCOOKING
	}
	return database.OrderStatusPENDING
}

// applyLineStatuses sets each line's status to the least advanced status of
// the tickets containing its product. Lines no ticket mentions keep theirs.
func applyLineStatuses(lines []database.OrderLine, tickets []database.Ticket) {
	least := make(map[uuid.UUID]database.TicketStatus)
	for _, t := range tickets {
		for _, item := range t.Items {
			cur, ok := least[item.ProductID]
			if !ok || t.Status.Rank() < cur.Rank() {
				least[item.ProductID] = t.Status
			}
		}
	}
	for i := range lines {
		if s, ok := least[lines[i].ProductID]; ok {
			lines[i].Status = s
		}
	}
}

func sumPayments(payments []database.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
