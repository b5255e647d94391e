// Package storage holds what the corpus blob backends share.
package storage

import "errors"

// ErrObjectNotFound is returned by GetObject when nothing is stored at path.
var ErrObjectNotFound = errors.New("object not found")
