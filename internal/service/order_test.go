package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwari-pos/floorops/internal/apperror"
	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/events"
)

func TestCreateOrder_Success(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder(" 5 ", f.item(f.productA, 1), f.item(f.productB, 1))

	assert.Equal(t, "ORD-0001", o.OrderNumber)
	assert.Equal(t, "5", o.TableNumber)
	assert.Equal(t, database.OrderStatusPENDING, o.Status)
	assert.True(t, dec(100000).Equal(o.Subtotal))
	assert.True(t, dec(5000).Equal(o.ServiceChargeAmount))
	assert.True(t, dec(11000).Equal(o.TaxAmount))
	assert.True(t, dec(116000).Equal(o.TotalAmount))
	assert.True(t, o.TotalPaid.IsZero())

	require.Len(t, o.Lines, 2)
	assert.Equal(t, int32(1), o.Lines[0].Position)
	assert.True(t, dec(40000).Equal(o.Lines[0].UnitPrice))

	require.Len(t, o.Tickets, 1)
	assert.Equal(t, int32(1), o.Tickets[0].Seq)
	assert.Equal(t, database.TicketStatusPENDING, o.Tickets[0].Status)
	assert.Len(t, o.Tickets[0].Items, 2)

	assert.Equal(t, []string{events.TypeNewOrder}, f.recorder.Types())
	assert.Equal(t, f.tenantID, f.recorder.Events()[0].TenantID)
}

func TestCreateOrder_MergesDuplicateProducts(t *testing.T) {
	f := newFixture(t)

	o := f.createOrder("1", f.item(f.productA, 1), f.item(f.productA, 2))

	require.Len(t, o.Lines, 1)
	assert.Equal(t, int32(3), o.Lines[0].Quantity)
	assert.True(t, dec(120000).Equal(o.Subtotal))
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		table string
		items []LineRequest
		want  error
	}{
		{"empty items", "1", nil, ErrEmptyItems},
		{"missing table", "  ", []LineRequest{f.item(f.productA, 1)}, ErrTableRequired},
		{"zero quantity", "1", []LineRequest{f.item(f.productA, 0)}, ErrInvalidQuantity},
		{"quantity too large", "1", []LineRequest{f.item(f.productA, math.MaxInt32)}, ErrQuantityTooLarge},
		{"merged quantity too large", "1", []LineRequest{f.item(f.productA, maxLineQuantity), f.item(f.productA, 2)}, ErrQuantityTooLarge},
		{"bad product id", "1", []LineRequest{{ProductID: "nope", Quantity: 1}}, ErrInvalidProductID},
		{"unknown product", "1", []LineRequest{{ProductID: "7b1b6a9e-3f0c-4c55-9d5e-1a2b3c4d5e6f", Quantity: 1}}, ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, CreateOrderRequest{
				TenantID:    f.tenantID,
				CreatedBy:   f.staffID,
				TableNumber: tt.table,
				Items:       tt.items,
			})
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
	assert.Empty(t, f.store.orders)
	assert.Empty(t, f.recorder.Events())
}

func TestParseLines_MergeDoesNotOverflow(t *testing.T) {
	id := uuid.New().String()

	_, err := parseLines([]LineRequest{
		{ProductID: id, Quantity: maxLineQuantity},
		{ProductID: id, Quantity: maxLineQuantity},
	})
	assert.ErrorIs(t, err, ErrQuantityTooLarge)

	got, err := parseLines([]LineRequest{
		{ProductID: id, Quantity: maxLineQuantity - 1},
		{ProductID: id, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(maxLineQuantity), got[0].quantity)
}

func TestCreateOrder_InactiveProduct(t *testing.T) {
	f := newFixture(t)
	p := f.store.products[f.productB]
	p.IsActive = false
	f.store.products[f.productB] = p

	_, err := f.svc.Create(context.Background(), CreateOrderRequest{
		TenantID:    f.tenantID,
		TableNumber: "1",
		Items:       []LineRequest{f.item(f.productB, 1)},
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCreateOrder_TableOccupied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createOrder("5", f.item(f.productA, 1))

	_, err := f.svc.Create(ctx, CreateOrderRequest{
		TenantID:    f.tenantID,
		TableNumber: "5",
		Items:       []LineRequest{f.item(f.productB, 1)},
	})
	require.ErrorIs(t, err, ErrTableOccupied)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	cleared, err := f.svc.ClearTable(ctx, f.tenantID, "5")
	require.NoError(t, err)
	assert.Equal(t, first.ID, cleared.ID)
	assert.Equal(t, database.OrderStatusCOMPLETED, cleared.Status)

	second := f.createOrder("5", f.item(f.productB, 1))
	assert.Equal(t, "ORD-0002", second.OrderNumber)
}

func TestCreateOrder_ActiveTableConstraintIsConflict(t *testing.T) {
	f := newFixture(t)
	f.store.createOrderErrs = []error{uniqueViolation(database.ConstraintActiveTable)}

	_, err := f.svc.Create(context.Background(), CreateOrderRequest{
		TenantID:    f.tenantID,
		TableNumber: "2",
		Items:       []LineRequest{f.item(f.productA, 1)},
	})
	assert.ErrorIs(t, err, ErrTableOccupied)
	assert.Equal(t, 1, f.store.createOrderCalls)
}

func TestCreateOrder_RetriesOrderNumberCollision(t *testing.T) {
	f := newFixture(t)
	f.store.createOrderErrs = []error{uniqueViolation(database.ConstraintOrderNumber)}

	o := f.createOrder("3", f.item(f.productA, 1))

	assert.Equal(t, 2, f.store.createOrderCalls)
	assert.Equal(t, "ORD-0001", o.OrderNumber)
}

func TestCreateOrder_GivesUpAfterRetries(t *testing.T) {
	f := newFixture(t)
	collision := uniqueViolation(database.ConstraintOrderNumber)
	f.store.createOrderErrs = []error{collision, collision, collision}

	_, err := f.svc.Create(context.Background(), CreateOrderRequest{
		TenantID:    f.tenantID,
		TableNumber: "3",
		Items:       []LineRequest{f.item(f.productA, 1)},
	})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err, database.ConstraintOrderNumber))
	assert.Equal(t, maxOrderNumberRetries, f.store.createOrderCalls)
}

func TestCreateOrder_BeginError(t *testing.T) {
	f := newFixture(t)
	f.svc.pool = &mockPool{err: errors.New("connection refused")}

	_, err := f.svc.Create(context.Background(), CreateOrderRequest{
		TenantID:    f.tenantID,
		TableNumber: "1",
		Items:       []LineRequest{f.item(f.productA, 1)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
}

func TestCreateOrder_PromoCode(t *testing.T) {
	f := newFixture(t)
	f.store.promos["HEMAT10"] = database.PromoCode{
		TenantID: f.tenantID, Code: "HEMAT10", DiscountType: database.DiscountTypePERCENTAGE,
		Value: dec(10), IsActive: true,
	}

	o, err := f.svc.Create(context.Background(), CreateOrderRequest{
		TenantID:    f.tenantID,
		TableNumber: "1",
		PromoCode:   " hemat10 ",
		Items:       []LineRequest{f.item(f.productA, 1), f.item(f.productB, 1)},
	})
	require.NoError(t, err)

	// taxable 90,000; service 4,500; tax 9,900
	assert.Equal(t, "HEMAT10", o.PromoCode)
	assert.True(t, dec(10000).Equal(o.DiscountAmount))
	assert.True(t, dec(4500).Equal(o.ServiceChargeAmount))
	assert.True(t, dec(9900).Equal(o.TaxAmount))
	assert.True(t, dec(104400).Equal(o.TotalAmount))

	_, err = f.svc.Create(context.Background(), CreateOrderRequest{
		TenantID:    f.tenantID,
		TableNumber: "2",
		PromoCode:   "NOPE",
		Items:       []LineRequest{f.item(f.productA, 1)},
	})
	assert.ErrorIs(t, err, ErrUnknownPromoCode)
}

func TestCreateOrder_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.recorder.Err = errors.New("broker down")

	o := f.createOrder("1", f.item(f.productA, 1))

	assert.NotNil(t, o)
	assert.Len(t, f.store.orders, 1)
	assert.Equal(t, 1, f.tx.commits)
}

func TestEditOrder_TicketsOnlyTheDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder("1", f.item(f.productA, 1))

	_, err := f.svc.UpdateTicketStatus(ctx, UpdateTicketRequest{
		TenantID: f.tenantID, OrderID: o.ID, Seq: 1, Status: database.TicketStatusCOOKING,
	})
	require.NoError(t, err)

	edited, err := f.svc.Edit(ctx, EditOrderRequest{
		TenantID: f.tenantID,
		OrderID:  o.ID,
		Items:    []LineRequest{f.item(f.productA, 2), f.item(f.productB, 1)},
	})
	require.NoError(t, err)

	assert.Equal(t, database.OrderStatusPENDING, edited.Status)
	require.Len(t, edited.Tickets, 2)
	delta := edited.Tickets[1]
	assert.Equal(t, int32(2), delta.Seq)
	assert.Equal(t, database.TicketStatusPENDING, delta.Status)
	require.Len(t, delta.Items, 2)
	assert.Equal(t, f.productA, delta.Items[0].ProductID)
	assert.Equal(t, int32(1), delta.Items[0].Quantity)
	assert.Equal(t, f.productB, delta.Items[1].ProductID)
	assert.Equal(t, int32(1), delta.Items[1].Quantity)

	// 2 x 40,000 + 60,000
	assert.True(t, dec(140000).Equal(edited.Subtotal))
	assert.Equal(t, database.TicketStatusCOOKING, edited.Tickets[0].Status)
	assert.Equal(t, database.TicketStatusPENDING, edited.Lines[0].Status)
}

func TestEditOrder_KeepsPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	o := f.createOrder("1", f.item(f.productA, 1))

	p := f.store.products[f.productA]
	p.Price = dec(45000)
	f.store.products[f.productA] = p

	edited, err := f.svc.Edit(context.Background(), EditOrderRequest{
		TenantID: f.tenantID,
		OrderID:  o.ID,
		Items:    []LineRequest{f.item(f.productA, 2)},
	})
	require.NoError(t, err)
	assert.True(t, dec(40000).Equal(edited.Lines[0].UnitPrice))
	assert.True(t, dec(80000).Equal(edited.Subtotal))
}

func TestEditOrder_RemovalOnlyAddsNoTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder("1", f.item(f.productA, 2), f.item(f.productB, 1))

	notes := "no chili"
	edited, err := f.svc.Edit(ctx, EditOrderRequest{
		TenantID: f.tenantID,
		OrderID:  o.ID,
		Items:    []LineRequest{f.item(f.productA, 1)},
		Notes:    &notes,
	})
	require.NoError(t, err)
	assert.Len(t, edited.Tickets, 1)
	require.Len(t, edited.Lines, 1)
	assert.Equal(t, int32(1), edited.Lines[0].Quantity)
	assert.Equal(t, "no chili", edited.Notes)
	assert.True(t, dec(40000).Equal(edited.Subtotal))
}

func TestEditOrder_WithoutNewQuantityKeepsKitchenStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder("1", f.item(f.productA, 2), f.item(f.productB, 1))

	_, err := f.svc.UpdateStatus(ctx, UpdateStatusRequest{TenantID: f.tenantID, OrderID: o.ID, Status: database.OrderStatusSERVED})
	require.NoError(t, err)

	noteOnly := LineRequest{ProductID: f.productA.String(), Quantity: 2, Note: "less salt"}
	for _, items := range [][]LineRequest{
		{noteOnly, f.item(f.productB, 1)},
		{noteOnly},
	} {
		edited, err := f.svc.Edit(ctx, EditOrderRequest{TenantID: f.tenantID, OrderID: o.ID, Items: items})
		require.NoError(t, err)
		assert.Equal(t, database.OrderStatusSERVED, edited.Status)
		assert.Len(t, edited.Tickets, 1)
		assert.Equal(t, "less salt", edited.Lines[0].Note)
	}

	edited, err := f.svc.Edit(ctx, EditOrderRequest{TenantID: f.tenantID, OrderID: o.ID, Items: []LineRequest{f.item(f.productA, 3)}})
	require.NoError(t, err)
	assert.Equal(t, database.OrderStatusPENDING, edited.Status)
	require.Len(t, edited.Tickets, 2)
	assert.Equal(t, int32(1), edited.Tickets[1].Items[0].Quantity)
}

func TestEditOrder_PaidOrderRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder("1", f.item(f.productA, 1))

	_, err := f.svc.Pay(ctx, PayRequest{
		TenantID: f.tenantID, OrderID: o.ID, CashierID: f.staffID,
		Method: database.PaymentMethodQRIS,
	})
	require.NoError(t, err)

	_, err = f.svc.Edit(ctx, EditOrderRequest{
		TenantID: f.tenantID,
		OrderID:  o.ID,
		Items:    []LineRequest{f.item(f.productA, 2)},
	})
	assert.ErrorIs(t, err, ErrOrderNotEditable)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestEditOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Edit(context.Background(), EditOrderRequest{
		TenantID: f.tenantID,
		OrderID:  uuid.New(),
		Items:    []LineRequest{f.item(f.productA, 1)},
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDiffLines_QuantityBelowPaid(t *testing.T) {
	f := newFixture(t)
	o := &database.Order{
		TenantID: f.tenantID,
		Lines: []database.OrderLine{
			{Position: 1, ProductID: f.productA, Quantity: 3, PaidQuantity: 2, UnitPrice: dec(40000)},
			{Position: 2, ProductID: f.productB, Quantity: 1, PaidQuantity: 1, UnitPrice: dec(60000)},
		},
	}

	_, _, err := f.svc.diffLines(context.Background(), o, []parsedLine{
		{productID: f.productA, quantity: 1},
		{productID: f.productB, quantity: 1},
	})
	assert.ErrorIs(t, err, ErrQuantityBelowPaid)

	_, _, err = f.svc.diffLines(context.Background(), o, []parsedLine{
		{productID: f.productA, quantity: 3},
	})
	assert.ErrorIs(t, err, ErrQuantityBelowPaid)

	lines, delta, err := f.svc.diffLines(context.Background(), o, []parsedLine{
		{productID: f.productA, quantity: 4},
		{productID: f.productB, quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), lines[0].PaidQuantity)
	assert.Equal(t, []database.TicketItem{{ProductID: f.productA, Quantity: 1}}, delta)
}

func TestUpdateStatus_AdvancesLaggingTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder("1", f.item(f.productA, 1))
	_, err := f.svc.Edit(ctx, EditOrderRequest{
		TenantID: f.tenantID, OrderID: o.ID,
		Items: []LineRequest{f.item(f.productA, 1), f.item(f.productB, 1)},
	})
	require.NoError(t, err)

	got, err := f.svc.UpdateStatus(ctx, UpdateStatusRequest{
		TenantID: f.tenantID, OrderID: o.ID, Status: database.OrderStatusREADY,
	})
	require.NoError(t, err)
	assert.Equal(t, database.OrderStatusREADY, got.Status)
	for _, tk := range got.Tickets {
		assert.Equal(t, database.TicketStatusREADY, tk.Status)
	}
	for _, l := range got.Lines {
		assert.Equal(t, database.TicketStatusREADY, l.Status)
	}
}

func TestUpdateStatus_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder("1", f.item(f.productA, 1))

	_, err := f.svc.UpdateStatus(ctx, UpdateStatusRequest{TenantID: f.tenantID, OrderID: o.ID, Status: database.OrderStatusPAID})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.Pay(ctx, PayRequest{
		TenantID: f.tenantID, OrderID: o.ID, CashierID: f.staffID, Method: database.PaymentMethodQRIS,
		Items: []PayItem{{ProductID: f.productA.String(), Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusRequest{TenantID: f.tenantID, OrderID: o.ID, Status: database.OrderStatusCANCELLED})
	assert.ErrorIs(t, err, ErrCancelWithPayments)

	other := f.createOrder("2", f.item(f.productB, 1))
	cancelled, err := f.svc.UpdateStatus(ctx, UpdateStatusRequest{TenantID: f.tenantID, OrderID: other.ID, Status: database.OrderStatusCANCELLED})
	require.NoError(t, err)
	assert.Equal(t, database.OrderStatusCANCELLED, cancelled.Status)

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusRequest{TenantID: f.tenantID, OrderID: other.ID, Status: database.OrderStatusCOOKING})
	assert.ErrorIs(t, err, ErrOrderClosed)
}

func TestUpdateStatus_LegacyOrderWithoutTickets(t *testing.T) {
	f := newFixture(t)
	o := seedLegacyOrder(f, "1")

	got, err := f.svc.UpdateStatus(context.Background(), UpdateStatusRequest{
		TenantID: f.tenantID, OrderID: o.ID, Status: database.OrderStatusCOOKING,
	})
	require.NoError(t, err)
	assert.Equal(t, database.OrderStatusCOOKING, got.Status)
	assert.Empty(t, got.Tickets)
	assert.Empty(t, f.store.tickets[o.ID])
	assert.Equal(t, database.TicketStatusCOOKING, got.Lines[0].Status)
}

func TestVoid_KeepsPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.createOrder("1", f.item(f.productA, 1), f.item(f.productB, 1))

	_, err := f.svc.Pay(ctx, PayRequest{
		TenantID: f.tenantID, OrderID: o.ID, CashierID: f.staffID,
		Method: database.PaymentMethodCASH, AmountReceived: dec(120000),
	})
	require.NoError(t, err)

	_, err = f.svc.Void(ctx, VoidOrderRequest{TenantID: f.tenantID, OrderID: o.ID, VoidedBy: f.staffID, Reason: "  "})
	assert.ErrorIs(t, err, ErrVoidReason)

	voided, err := f.svc.Void(ctx, VoidOrderRequest{TenantID: f.tenantID, OrderID: o.ID, VoidedBy: f.staffID, Reason: "wrong table"})
	require.NoError(t, err)
	assert.Equal(t, database.OrderStatusVOID, voided.Status)
	assert.Equal(t, "wrong table", voided.VoidReason)
	require.NotNil(t, voided.VoidedBy)
	assert.Equal(t, f.staffID, *voided.VoidedBy)
	assert.NotNil(t, voided.VoidedAt)
	assert.Len(t, voided.Payments, 1)
	assert.Equal(t, voided.Lines[0].Quantity, voided.Lines[0].PaidQuantity)

	payments, err := f.svc.Payments(ctx, f.tenantID, o.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	_, err = f.svc.Void(ctx, VoidOrderRequest{TenantID: f.tenantID, OrderID: o.ID, VoidedBy: f.staffID, Reason: "again"})
	assert.ErrorIs(t, err, ErrAlreadyVoid)

	// The table is free again.
	f.createOrder("1", f.item(f.productA, 1))
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createOrder("1", f.item(f.productA, 1))
	f.createOrder("2", f.item(f.productB, 1))

	got, err := f.svc.Get(ctx, f.tenantID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.OrderNumber, got.OrderNumber)
	assert.Len(t, got.Lines, 1)
	assert.Len(t, got.Tickets, 1)
	assert.NotNil(t, got.Payments)

	_, err = f.svc.Get(ctx, f.tenantID, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)

	all, err := f.svc.List(ctx, ListOrdersRequest{TenantID: f.tenantID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byTable, err := f.svc.List(ctx, ListOrdersRequest{TenantID: f.tenantID, TableNumber: " 2 "})
	require.NoError(t, err)
	require.Len(t, byTable, 1)
	assert.Equal(t, "2", byTable[0].TableNumber)

	none, err := f.svc.List(ctx, ListOrdersRequest{TenantID: f.tenantID, Status: database.OrderStatusPAID})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

// seedLegacyOrder stores an order written before ticketing existed: lines
// but no tickets.
func seedLegacyOrder(f *fixture, table string) database.Order {
	f.t.Helper()
	now := f.now()
	o := database.Order{
		ID:          uuid.New(),
		TenantID:    f.tenantID,
		OrderNumber: "ORD-0099",
		TableNumber: table,
		Status:      database.OrderStatusPENDING,
		Subtotal:    dec(40000),
		TotalAmount: dec(46400),
		TotalPaid:   decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.store.orders[o.ID] = o
	f.store.seqs[o.ID] = 99
	f.store.lines[o.ID] = []database.OrderLine{{
		Position: 1, ProductID: f.productA, Quantity: 1, UnitPrice: dec(40000), Status: database.TicketStatusPENDING,
	}}
	return o
}
