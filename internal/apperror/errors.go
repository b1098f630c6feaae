package apperror

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindConflict          Kind = "conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
)

// AppError is a domain failure the HTTP layer can render as-is.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches any AppError of the same kind, so errors.Is(err, ErrConflict)
// holds for every conflict regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation        = &AppError{Kind: KindValidation, Code: http.StatusBadRequest, Message: "Invalid request"}
	ErrConflict          = &AppError{Kind: KindConflict, Code: http.StatusConflict, Message: "Conflict"}
	ErrInsufficientFunds = &AppError{Kind: KindInsufficientFunds, Code: http.StatusUnprocessableEntity, Message: "Insufficient funds"}
	ErrNotFound          = &AppError{Kind: KindNotFound, Code: http.StatusNotFound, Message: "Resource not found"}
	ErrForbidden         = &AppError{Kind: KindForbidden, Code: http.StatusForbidden, Message: "Forbidden"}
)

func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Code: http.StatusBadRequest, Message: message}
}

func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Code: http.StatusConflict, Message: message}
}

func InsufficientFunds(message string) *AppError {
	return &AppError{Kind: KindInsufficientFunds, Code: http.StatusUnprocessableEntity, Message: message}
}

// NotFound builds "<resource> not found".
func NotFound(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Code: http.StatusNotFound, Message: resource + " not found"}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: http.StatusForbidden, Message: message}
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus maps err to a response code. Unknown errors are 500.
func HTTPStatus(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
