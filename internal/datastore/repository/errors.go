package repository

import "github.com/petpulse/petpulse-go/internal/errors"

// Sentinel errors surfaced by the store. Callers match them with errors.Is;
// everything else coming out of this package is a wrapped driver error.
var (
	ErrPetNotFound     = errors.NewStd("pet not found")
	ErrAlertNotFound   = errors.NewStd("alert not found")
	ErrContactNotFound = errors.NewStd("emergency contact not found")
	ErrDuplicateAlert  = errors.NewStd("alert already ingested")
)
