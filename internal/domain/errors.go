package domain

import "errors"

// Sentinel errors for the four failure classes of the risk engine. Callers
// distinguish them with errors.Is; none are retried inside the core.
var (
	// ErrUnknownLocation is returned when a query names a location that was
	// not part of the training set. Recoverable: the caller picks a known
	// location.
	ErrUnknownLocation = errors.New("unknown location")

	// ErrInsufficientClassDiversity is returned when training data contains
	// only one label and cannot support a two-class classifier. Fatal to the
	// training run; nothing is persisted.
	ErrInsufficientClassDiversity = errors.New("insufficient class diversity")

	// ErrCorruptArtifact is returned when a persisted classifier/encoder pair
	// is unreadable or internally inconsistent. Fatal at load time; the
	// engine never falls back to a partial model.
	ErrCorruptArtifact = errors.New("corrupt artifact")

	// ErrModelNotLoaded is returned when inference is attempted before an
	// artifact has been loaded successfully.
	ErrModelNotLoaded = errors.New("model not loaded")

	// ErrHourOutOfRange is returned when a query hour falls outside the
	// 1-indexed 1..24 range accepted at the serving boundary.
	ErrHourOutOfRange = errors.New("hour out of range")
)
