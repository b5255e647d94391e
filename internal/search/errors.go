package search

import "errors"

var (
	// ErrIndexSetup reports a schema declaration or reset failure. It is fatal
	// to a corpus build.
	ErrIndexSetup = errors.New("index setup failed")
	// ErrQueryFailed reports a query that could not be evaluated.
	ErrQueryFailed = errors.New("query failed")
)
