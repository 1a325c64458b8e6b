package service

import "errors"

// ErrNoOwner is returned when an owner-scoped operation is attempted without
// an authenticated user. These fail fast instead of querying over an
// undefined owner.
var ErrNoOwner = errors.New("no authenticated owner")
