package escalation

import (
	"github.com/petpulse/petpulse-go/internal/datastore/repository"
	"github.com/petpulse/petpulse-go/internal/errors"
)

// Sentinel errors returned by the engine. The API layer maps them onto HTTP
// statuses; internal callers match them with errors.Is.
var (
	// ErrInvalidObservation marks a payload that fails validation before it
	// reaches the store. Nothing is persisted for these.
	ErrInvalidObservation = errors.NewStd("invalid observation")

	// ErrStateUnavailable means the pet's escalation state could not be read
	// or written. The observation was not processed and may be redelivered.
	ErrStateUnavailable = errors.NewStd("escalation state unavailable")

	// ErrDuplicateAlert aliases the store sentinel so callers can match the
	// redelivery case without importing the repository package.
	ErrDuplicateAlert = repository.ErrDuplicateAlert

	// ErrDeliveryFailure means an intervention was decided and recorded but
	// its side effects could not all be delivered.
	ErrDeliveryFailure = errors.NewStd("intervention delivery failed")

	// ErrInconsistentState marks stored state that violates the single open
	// alert invariant, such as a pet pointing at a missing alert row.
	ErrInconsistentState = errors.NewStd("inconsistent escalation state")
)
