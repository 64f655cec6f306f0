// Package apperr defines the business-rule errors returned by the storefront
// core. Every error carries a stable machine-readable code next to its
// human-readable message.
package apperr

import "errors"

type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindAccessDenied      Kind = "ACCESS_DENIED"
	KindOutOfStock        Kind = "OUT_OF_STOCK"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindCartEmpty         Kind = "CART_EMPTY"
	KindOrderCannotCancel Kind = "ORDER_CANNOT_CANCEL"
	KindOrderCannotRefund Kind = "ORDER_CANNOT_REFUND"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindInvalidState      Kind = "INVALID_STATE"
	KindConflict          Kind = "CONFLICT"
	KindUnauthorized      Kind = "UNAUTHORIZED"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string { return e.Message }

// As unwraps err to the first *Error in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a business error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

var (
	ErrUserNotFound     = New(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrProductNotFound  = New(KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	ErrCartItemNotFound = New(KindNotFound, "CART_ITEM_NOT_FOUND", "cart item not found")
	ErrOrderNotFound    = New(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrPaymentNotFound  = New(KindNotFound, "PAYMENT_NOT_FOUND", "payment not found")
	ErrDeliveryNotFound = New(KindNotFound, "DELIVERY_NOT_FOUND", "delivery not found")

	ErrAccessDenied = New(KindAccessDenied, "ACCESS_DENIED", "access denied")

	ErrProductUnavailable = New(KindOutOfStock, "PRODUCT_NOT_AVAILABLE", "product is not available for sale")
	ErrOutOfStock         = New(KindOutOfStock, "PRODUCT_OUT_OF_STOCK", "product is out of stock")
	ErrInsufficientStock  = New(KindInsufficientStock, "INSUFFICIENT_STOCK", "not enough stock for the requested quantity")

	ErrCartEmpty = New(KindCartEmpty, "CART_EMPTY", "cart is empty")

	ErrOrderCannotCancel = New(KindOrderCannotCancel, "ORDER_CANNOT_CANCEL", "order can no longer be cancelled")
	ErrOrderCannotRefund = New(KindOrderCannotRefund, "ORDER_CANNOT_REFUND", "order cannot be refunded")

	ErrInvalidQuantity = New(KindValidation, "INVALID_QUANTITY", "quantity must be at least 1")
	ErrInvalidInput    = New(KindValidation, "INVALID_INPUT_VALUE", "invalid input value")

	ErrOrderInvalidTransition    = New(KindInvalidState, "ORDER_INVALID_TRANSITION", "order status transition is not allowed")
	ErrPaymentInvalidTransition  = New(KindInvalidState, "PAYMENT_INVALID_TRANSITION", "payment status transition is not allowed")
	ErrDeliveryInvalidTransition = New(KindInvalidState, "DELIVERY_INVALID_TRANSITION", "delivery status transition is not allowed")

	ErrEmailTaken         = New(KindConflict, "EMAIL_DUPLICATION", "email is already in use")
	ErrInvalidCredentials = New(KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
)
