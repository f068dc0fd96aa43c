package services

import "errors"

var (
	ErrTransactionNotFound = errors.New("payment transaction not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrNotAuthorized       = errors.New("not authorized for this booking")
	ErrAlreadyCancelled    = errors.New("booking already cancelled")
	ErrNotCancellable      = errors.New("booking can no longer be cancelled")
	ErrSlotTaken           = errors.New("slot no longer available")
)
