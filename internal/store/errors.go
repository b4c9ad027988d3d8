package store

import "errors"

// ErrNotFound marks a missing document; handlers map it to 404.
var ErrNotFound = errors.New("not found")
