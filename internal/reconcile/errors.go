package reconcile

import "errors"

var (
	ErrExtractionUnavailable = errors.New("extraction unavailable")
	ErrRegistryUnavailable   = errors.New("supplier registry unavailable")
	ErrSupplierNotFound      = errors.New("supplier not found")
	ErrSessionState          = errors.New("invalid resolution session state")
	ErrMissingSupplierID     = errors.New("registry match without supplier id")
)
