package domain

import "errors"

// ErrNotFound is returned when a durable record does not exist. Background
// steps treat it as an expected race with manual deletion rather than a fault.
var ErrNotFound = errors.New("not found")
