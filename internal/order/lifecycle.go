package order

import (
	"errors"

	"tradecore/internal/model"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrRejected          = errors.New("trade rejected by risk checks")
	ErrNoGateway         = errors.New("no gateway for exchange")
)

// CanTransition reports whether an order may move between the two statuses.
// Legal paths: pending to filled, cancelled or rejected; filled to closed.
func CanTransition(from, to model.Status) bool {
	if from == to {
		return false
	}
	switch from {
	case model.StatusPending:
		switch to {
		case model.StatusFilled, model.StatusCancelled, model.StatusRejected:
			return true
		}
	case model.StatusFilled:
		return to == model.StatusClosed
	}
	return false
}

// Transition validates and returns the new status.
func Transition(from, to model.Status) (model.Status, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}
