package models

import "errors"

// Error kinds shared by every layer. Wrap them with fmt.Errorf("...: %w") and
// classify with errors.Is.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
	ErrUpstreamFetch    = errors.New("upstream fetch failure")
	ErrUpstreamDelivery = errors.New("upstream delivery failure")
	ErrStorage          = errors.New("storage failure")
)
