package service

import "github.com/kiwari-pos/floorops/internal/apperror"

// Errors returned by the order engine. Callers match them with errors.Is and
// map them to responses through apperror.HTTPStatus.
var (
	ErrEmptyItems        = apperror.Validation("items are required")
	ErrInvalidQuantity   = apperror.Validation("quantity must be > 0")
	ErrQuantityTooLarge  = apperror.Validation("quantity is too large")
	ErrInvalidProductID  = apperror.Validation("invalid product_id")
	ErrProductNotFound   = apperror.Validation("product not found")
	ErrTableRequired     = apperror.Validation("table_number is required")
	ErrInvalidTable      = apperror.Validation("table_number must be positive")
	ErrUnknownPromoCode  = apperror.Validation("unknown or inactive promo code")
	ErrQuantityBelowPaid = apperror.Validation("quantity cannot drop below the paid quantity")
	ErrInvalidStatus     = apperror.Validation("invalid status")
	ErrVoidReason        = apperror.Validation("void reason is required")

	ErrOrderNotFound      = apperror.NotFound("order")
	ErrTableOccupied      = apperror.Conflict("table already has an active order")
	ErrOrderNotEditable   = apperror.Conflict("order can no longer be edited")
	ErrOrderClosed        = apperror.Conflict("order is closed")
	ErrCancelWithPayments = apperror.Conflict("cannot cancel an order with payments")
	ErrAlreadyVoid        = apperror.Conflict("order is already void")

	ErrTicketNotFound      = apperror.NotFound("ticket")
	ErrInvalidTicketStatus = apperror.Validation("invalid ticket status")
	ErrTicketRegression    = apperror.Conflict("ticket status can only move forward")

	ErrInvalidPaymentMethod = apperror.Validation("invalid payment method")
	ErrPaymentItemNotFound  = apperror.Validation("item is not on this order")
	ErrExceedsUnpaid        = apperror.Validation("quantity exceeds the unpaid quantity")
	ErrNothingToPay         = apperror.Conflict("nothing to pay")
	ErrInsufficientCash     = apperror.InsufficientFunds("amount received is less than amount due")

	ErrNoActiveOrder = apperror.NotFound("active order for table")

	ErrInvalidAmount    = apperror.Validation("amount must not be negative")
	ErrShiftAlreadyOpen = apperror.Conflict("cashier already has an open shift")
	ErrNoOpenShift      = apperror.NotFound("open shift")
	ErrInvalidRange     = apperror.Validation("from must not be after to")
)
