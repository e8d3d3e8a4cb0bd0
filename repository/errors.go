package repository

import "errors"

var (
	// ErrStatusConflict means the order was not in an expected status when the
	// conditional write ran.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrOpenDiscrepancies means the order still has unresolved discrepancies.
	ErrOpenDiscrepancies = errors.New("order has unresolved discrepancies")
	// ErrAlreadyResolved means the discrepancy was resolved before this write.
	ErrAlreadyResolved = errors.New("discrepancy already resolved")
)
