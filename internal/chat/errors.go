package chat

import "errors"

var (
	// ErrCreateFailed means the backend rejected session creation; no
	// session was inserted locally.
	ErrCreateFailed = errors.New("session create failed")

	// ErrDeleteFailed means the backend rejected session deletion; local
	// state is unchanged.
	ErrDeleteFailed = errors.New("session delete failed")

	// ErrNoActiveSession is returned by operations that require a
	// pre-existing session, such as the document-panel upload path.
	ErrNoActiveSession = errors.New("no active session")
)
