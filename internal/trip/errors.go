package trip

import "errors"

var (
	// ErrCreation is returned when the remote create call fails; no local
	// trip exists afterward.
	ErrCreation = errors.New("trip creation failed")

	// ErrCompletion is returned after the completion retries are exhausted;
	// the trip stays active for a manual retry.
	ErrCompletion = errors.New("trip completion failed")

	// ErrEndInProgress guards against duplicate end requests.
	ErrEndInProgress = errors.New("trip end already in progress")

	// ErrNoActiveTrip is returned by commands that need a running trip.
	ErrNoActiveTrip = errors.New("no active trip")

	// ErrTripActive rejects starting or resuming over a running trip.
	ErrTripActive = errors.New("trip already active")

	// ErrRemoteTerminated reports that the server force-ended or cancelled
	// the trip; local state has been cleared.
	ErrRemoteTerminated = errors.New("trip terminated by server")
)
