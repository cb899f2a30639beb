package index

import "errors"

var (
	// ErrEmptyIndex is returned by queries against an index that was never
	// successfully built.
	ErrEmptyIndex = errors.New("plan index is empty")
	// ErrBuildFailure wraps whatever stopped Build: an empty corpus, a missing
	// corpus, an embedding failure or inconsistent vectors.
	ErrBuildFailure = errors.New("plan index build failed")
	ErrAlreadyBuilt = errors.New("plan index already built")
	ErrInvalidK     = errors.New("k must not be negative")
	ErrEmptyCorpus  = errors.New("plan corpus is empty")
)
