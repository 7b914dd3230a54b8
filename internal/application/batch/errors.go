package batch

import (
	"errors"

	"github.com/garyjia/fleet-worklog/internal/domain/entity"
)

var (
	// ErrSuperseded is returned by a lookup whose batch number was replaced
	// while the request was in flight; its response is discarded
	ErrSuperseded = errors.New("lookup superseded by a newer batch number")

	// ErrFormDiscarded is returned when a cancelled or replaced form is used
	ErrFormDiscarded = entity.NewConflictError("validation form", "the form was discarded")

	// ErrAlreadySubmitted is returned when a form's decision was already accepted by the backend
	ErrAlreadySubmitted = entity.NewConflictError("validation form", "the decision was already submitted")
)
