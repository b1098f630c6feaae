package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/kiwari-pos/floorops/internal/database"
	"github.com/kiwari-pos/floorops/internal/service"
)

// Money is rendered as fixed two-decimal strings.

type orderResponse struct {
	ID                  uuid.UUID         `json:"id"`
	TenantID            uuid.UUID         `json:"tenant_id"`
	OrderNumber         string            `json:"order_number"`
	TableNumber         string            `json:"table_number"`
	Status              string            `json:"status"`
	Notes               string            `json:"notes"`
	PromoCode           string            `json:"promo_code"`
	Subtotal            string            `json:"subtotal"`
	DiscountAmount      string            `json:"discount_amount"`
	TaxAmount           string            `json:"tax_amount"`
	ServiceChargeAmount string            `json:"service_charge_amount"`
	TotalAmount         string            `json:"total_amount"`
	TotalPaid           string            `json:"total_paid"`
	VoidReason          *string           `json:"void_reason"`
	VoidedBy            *uuid.UUID        `json:"voided_by"`
	VoidedAt            *time.Time        `json:"voided_at"`
	CompletedAt         *time.Time        `json:"completed_at"`
	CreatedBy           uuid.UUID         `json:"created_by"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
	Items               []lineResponse    `json:"items"`
	Tickets             []ticketResponse  `json:"tickets"`
	Payments            []paymentResponse `json:"payments"`
}

type lineResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	Quantity     int32     `json:"quantity"`
	PaidQuantity int32     `json:"paid_quantity"`
	UnitPrice    string    `json:"unit_price"`
	Note         string    `json:"note"`
	Status       string    `json:"status"`
}

type ticketResponse struct {
	Seq       int32                `json:"seq"`
	Status    string               `json:"status"`
	Legacy    bool                 `json:"legacy"`
	Items     []ticketItemResponse `json:"items"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

type ticketItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Note      string    `json:"note"`
}

type paymentResponse struct {
	Seq                int32                 `json:"seq"`
	Method             string                `json:"payment_method"`
	Provider           string                `json:"provider"`
	Amount             string                `json:"amount"`
	AmountReceived     string                `json:"amount_received"`
	ChangeAmount       string                `json:"change_amount"`
	RoundingAdjustment string                `json:"rounding_adjustment"`
	CashierID          uuid.UUID             `json:"cashier_id"`
	Note               string                `json:"note"`
	Items              []paymentItemResponse `json:"items"`
	CreatedAt          time.Time             `json:"created_at"`
}

type paymentItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Amount    string    `json:"amount"`
}

type queuedTicketResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	TableNumber string    `json:"table_number"`
	ticketResponse
}

type shiftResponse struct {
	ID           uuid.UUID  `json:"id"`
	CashierID    uuid.UUID  `json:"cashier_id"`
	Status       string     `json:"status"`
	StartCash    string     `json:"start_cash"`
	StartTime    time.Time  `json:"start_time"`
	EndCash      *string    `json:"end_cash"`
	EndTime      *time.Time `json:"end_time"`
	CashSales    string     `json:"cash_sales"`
	NonCashSales string     `json:"non_cash_sales"`
	ExpectedCash string     `json:"expected_cash"`
	Difference   string     `json:"difference"`
	Note         string     `json:"note"`
}

type paymentTotalResponse struct {
	Method string `json:"payment_method"`
	Count  int64  `json:"count"`
	Amount string `json:"amount"`
}

type salesReportResponse struct {
	From           time.Time              `json:"from"`
	To             time.Time              `json:"to"`
	OrderCount     int64                  `json:"order_count"`
	Subtotal       string                 `json:"subtotal"`
	DiscountAmount string                 `json:"discount_amount"`
	TaxAmount      string                 `json:"tax_amount"`
	ServiceCharge  string                 `json:"service_charge"`
	TotalAmount    string                 `json:"total_amount"`
	TotalCollected string                 `json:"total_collected"`
	Payments       []paymentTotalResponse `json:"payments"`
}

func toOrderResponse(o *database.Order) orderResponse {
	resp := orderResponse{
		ID:                  o.ID,
		TenantID:            o.TenantID,
		OrderNumber:         o.OrderNumber,
		TableNumber:         o.TableNumber,
		Status:              string(o.Status),
		Notes:               o.Notes,
		PromoCode:           o.PromoCode,
		Subtotal:            money(o.Subtotal),
		DiscountAmount:      money(o.DiscountAmount),
		TaxAmount:           money(o.TaxAmount),
		ServiceChargeAmount: money(o.ServiceChargeAmount),
		TotalAmount:         money(o.TotalAmount),
		TotalPaid:           money(o.TotalPaid),
		VoidedBy:            o.VoidedBy,
		VoidedAt:            o.VoidedAt,
		CompletedAt:         o.CompletedAt,
		CreatedBy:           o.CreatedBy,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
		Items:               make([]lineResponse, len(o.Lines)),
		Tickets:             make([]ticketResponse, len(o.Tickets)),
		Payments:            make([]paymentResponse, len(o.Payments)),
	}
	if o.VoidReason != "" {
		reason := o.VoidReason
		resp.VoidReason = &reason
	}
	for i, l := range o.Lines {
		resp.Items[i] = lineResponse{
			ProductID:    l.ProductID,
			Quantity:     l.Quantity,
			PaidQuantity: l.PaidQuantity,
			UnitPrice:    money(l.UnitPrice),
			Note:         l.Note,
			Status:       string(l.Status),
		}
	}
	for i, t := range o.Tickets {
		resp.Tickets[i] = toTicketResponse(t)
	}
	for i, p := range o.Payments {
		resp.Payments[i] = toPaymentResponse(p)
	}
	return resp
}

func toTicketResponse(t database.Ticket) ticketResponse {
	resp := ticketResponse{
		Seq:       t.Seq,
		Status:    string(t.Status),
		Legacy:    t.Legacy,
		Items:     make([]ticketItemResponse, len(t.Items)),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for i, it := range t.Items {
		resp.Items[i] = ticketItemResponse{ProductID: it.ProductID, Quantity: it.Quantity, Note: it.Note}
	}
	return resp
}

func toPaymentResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		Seq:                p.Seq,
		Method:             string(p.Method),
		Provider:           string(p.Provider),
		Amount:             money(p.Amount),
		AmountReceived:     money(p.AmountReceived),
		ChangeAmount:       money(p.ChangeAmount),
		RoundingAdjustment: money(p.RoundingAdjustment),
		CashierID:          p.CashierID,
		Note:               p.Note,
		Items:              make([]paymentItemResponse, len(p.Items)),
		CreatedAt:          p.CreatedAt,
	}
	for i, it := range p.Items {
		resp.Items[i] = paymentItemResponse{ProductID: it.ProductID, Quantity: it.Quantity, Amount: money(it.Amount)}
	}
	return resp
}

func toShiftResponse(s *database.Shift) shiftResponse {
	resp := shiftResponse{
		ID:           s.ID,
		CashierID:    s.CashierID,
		Status:       string(s.Status),
		StartCash:    money(s.StartCash),
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		CashSales:    money(s.CashSales),
		NonCashSales: money(s.NonCashSales),
		ExpectedCash: money(s.ExpectedCash),
		Difference:   money(s.Difference),
		Note:         s.Note,
	}
	if s.Status == database.ShiftStatusCLOSED {
		endCash := money(s.EndCash)
		resp.EndCash = &endCash
	}
	return resp
}

func toSalesReportResponse(r *service.SalesReport) salesReportResponse {
	resp := salesReportResponse{
		From:           r.From,
		To:             r.To,
		OrderCount:     r.Revenue.OrderCount,
		Subtotal:       money(r.Revenue.Subtotal),
		DiscountAmount: money(r.Revenue.DiscountAmount),
		TaxAmount:      money(r.Revenue.TaxAmount),
		ServiceCharge:  money(r.Revenue.ServiceCharge),
		TotalAmount:    money(r.Revenue.TotalAmount),
		TotalCollected: money(r.TotalCollected),
		Payments:       make([]paymentTotalResponse, len(r.Payments)),
	}
	for i, p := range r.Payments {
		resp.Payments[i] = paymentTotalResponse{Method: string(p.Method), Count: p.Count, Amount: money(p.Amount)}
	}
	return resp
}
