package core

import "errors"

// Failure classes shared across the engine. Packages wrap these with %w so
// callers can classify with errors.Is without importing each other.
var (
	// ErrComponentUnknown: no registered component matches a kind/name pair.
	ErrComponentUnknown = errors.New("component unknown")
	// ErrInvalidConfig: an option map failed schema validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrMissingCredential: a component required a token that no credential
	// provides. Absence of a credential is otherwise a valid state and is
	// forwarded as a null token, so only token-mandatory paths raise this.
	ErrMissingCredential = errors.New("missing credential")
	// ErrMalformedJob: a queue payload failed to decode into a job.
	ErrMalformedJob = errors.New("malformed job")
	// ErrUpstreamTransient: the upstream call may succeed on a later attempt.
	ErrUpstreamTransient = errors.New("transient upstream failure")
	// ErrUpstreamFatal: retrying the upstream call cannot help.
	ErrUpstreamFatal = errors.New("fatal upstream failure")
	// ErrSchedulerShutdown: an operation was interrupted by engine shutdown.
	ErrSchedulerShutdown = errors.New("scheduler shutting down")
)

