package models

import "errors"

// ErrValidation reports a mutation that would break a model invariant,
// e.g. a default class outside the class set. The entity is left unchanged.
var ErrValidation = errors.New("validation error")
