// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a malformed or incomplete inbound payload.
var ErrValidation = errors.New("validation")

// ErrConfiguration indicates a tenant is missing required platform credentials.
var ErrConfiguration = errors.New("configuration")
