package errors

import "errors"

var (
	ErrNotFound         = errors.New("payment not found")
	ErrInvalidID        = errors.New("invalid payment id format")
	ErrDuplicatePayment = errors.New("payment already exists for booking")
	ErrStatusConflict   = errors.New("payment status changed concurrently")
)
