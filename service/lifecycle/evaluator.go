package lifecycle

import (
	"time"

	"booklend/model"
)

// Evaluate computes the lifecycle status of a rental from its due date,
// its return flag and an injected clock reading. It is the single
// decision point for rental state: stored status is a cache of this
// function, never an independent source of truth.
//
// A rental due exactly now is still ACTIVE.
func Evaluate(dueDate time.Time, returned bool, now time.Time) (model.RentalStatus, error) {
	if dueDate.IsZero() {
		return "", makeErr(ErrInvalidArgument, errMissingDueDate)
	}
	if returned {
		return model.RentalReturned, nil
	}
	if dueDate.Before(now) {
		return model.RentalOverdue, nil
	}
	return model.RentalActive, nil
}
