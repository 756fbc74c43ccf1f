package models

import "errors"

// Error kinds shared by the clients, services and HTTP layer. Callers test
// them with errors.Is; implementations wrap them with fmt.Errorf("...: %w").
var (
	ErrDataNotFound         = errors.New("data not found")
	ErrValidation           = errors.New("validation error")
	ErrNetwork              = errors.New("network error")
	ErrFetch                = errors.New("fetch error")
	ErrParse                = errors.New("parse error")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRateLimited          = errors.New("rate limited")
)
