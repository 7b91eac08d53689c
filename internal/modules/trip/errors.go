// README: Sentinel errors shared by the seat ledger, dispatcher and lifecycle.
package trip

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("acting party does not own this trip or request")
	ErrBadRequest        = errors.New("bad request")
	ErrDuplicateRequest  = errors.New("rider already has an active request for this trip")
	ErrSeatsFull         = errors.New("this trip just filled up")
	ErrAlreadyCancelled  = errors.New("request is already cancelled")
	ErrRiderNotConfirmed = errors.New("rider has not confirmed pickup yet")
	ErrTooEarly          = errors.New("too early to start this trip")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrConflict          = errors.New("state changed concurrently")
)
