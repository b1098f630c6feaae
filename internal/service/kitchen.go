package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/events"
)

type UpdateTicketRequest struct {
	TenantID uuid.UUID
	OrderID  uuid.UUID
	Seq      int32
	Status   database.TicketStatus
}

// Tickets returns the order's kitchen tickets. Orders created before
// ticketing get a single display-only ticket (seq 0) built from their
// unfinished lines.
func (s *OrderService) Tickets(ctx context.Context, tenantID, orderID uuid.UUID) ([]database.Ticket, error) {
	o, err := s.Get(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if len(o.Tickets) > 0 {
		return o.Tickets, nil
	}
	return legacyTickets(o), nil
}

func legacyTickets(o *database.Order) []database.Ticket {
	var items []database.TicketItem
	for _, l := range o.Lines {
		if l.Status == database.TicketStatusPENDING {
			items = append(items, database.TicketItem{ProductID: l.ProductID, Quantity: l.Quantity, Note: l.Note})
		}
	}
	if len(items) == 0 {
		return []database.Ticket{}
	}
	return []database.Ticket{{
		Seq:       0,
		Status:    database.TicketStatusPENDING,
		Items:     items,
		Legacy:    true,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}}
}

// UpdateTicketStatus moves one ticket forward and re-derives the order.
// Tickets never move backwards; a concurrent update that already advanced
// the ticket is reported as a regression.
func (s *OrderService) UpdateTicketStatus(ctx context.Context, req UpdateTicketRequest) (*database.Order, error) {
	if req.Status.Rank() < 0 {
		return nil, ErrInvalidTicketStatus
	}

	order, err := s.mutate(ctx, req.TenantID, req.OrderID, func(ctx context.Context, store OrderStore, o *database.Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderClosed
		}

		idx := -1
		for i := range o.Tickets {
			if o.Tickets[i].Seq == req.Seq {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrTicketNotFound
		}

		t := &o.Tickets[idx]
		if req.Status.Rank() <= t.Status.Rank() {
			return ErrTicketRegression
		}

		now := s.now()
		if err := store.UpdateTicketStatus(ctx, o.ID, t.Seq, t.Status, req.Status, now); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTicketRegression
			}
			return fmt.Errorf("update ticket: %w", err)
		}
		t.Status = req.Status
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"tenant_id":  order.TenantID,
		"order_id":   order.ID,
		"ticket_seq": req.Seq,
		"ticket":     req.Status,
		"status":     order.Status,
	}).Info("ticket status updated")
	s.publish(ctx, events.TypeOrderStatusUpdated, order)
	return order, nil
}

// QueuedTicket is one unfinished ticket on the kitchen display.
type QueuedTicket struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	TableNumber string    `json:"table_number"`
	database.Ticket
}

// KitchenQueue lists every unfinished ticket of the tenant's active orders,
// oldest first.
func (s *OrderService) KitchenQueue(ctx context.Context, tenantID uuid.UUID) ([]QueuedTicket, error) {
	store := s.newStore(s.pool)
	orders, err := store.ListActiveOrders(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}

	queue := []QueuedTicket{}
	for i := range orders {
		o := &orders[i]
		tickets, err := store.ListTickets(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("list tickets: %w", err)
		}
		if len(tickets) == 0 {
			lines, err := store.ListOrderLines(ctx, o.ID)
			if err != nil {
				return nil, fmt.Errorf("list order lines: %w", err)
			}
			o.Lines = lines
			tickets = legacyTickets(o)
		}
		for _, t := range tickets {
			if t.Status.IsTerminal() {
				continue
			}
			queue = append(queue, QueuedTicket{
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				TableNumber: o.TableNumber,
				Ticket:      t,
			})
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].CreatedAt.Before(queue[j].CreatedAt)
	})
	return queue, nil
}
