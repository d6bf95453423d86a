package server

import "errors"

var (
	// ErrNotFound reports a session or participant that is not registered.
	ErrNotFound = errors.New("not found")
	// ErrCapacity reports a max-player configuration outside the allowed bound.
	ErrCapacity = errors.New("max players out of range")
	// ErrSessionFull reports a join against a session at capacity.
	ErrSessionFull = errors.New("session full")
	// ErrSessionClosed reports an action against a finished session.
	ErrSessionClosed = errors.New("session closed")
	// ErrDuplicateIdentity reports a join reusing an identity already present.
	ErrDuplicateIdentity = errors.New("identity already joined")
)
