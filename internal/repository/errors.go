package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidID         = errors.New("invalid id")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicatePayment  = errors.New("payment already recorded")
	ErrDuplicateOrderID  = errors.New("order id already in use")
)
