package domain

import "errors"

// ErrStoreUnavailable is returned when the document store cannot be reached or timed out.
var ErrStoreUnavailable = errors.New("store unavailable")
