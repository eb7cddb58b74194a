package domain

import "errors"

var (
	// ErrCatalogNotLoaded is returned when a run is started before the word
	// catalog has been fetched.
	ErrCatalogNotLoaded = errors.New("word catalog not loaded")
	// ErrRunActive is returned when a run is started while another run is in
	// progress or still finalizing.
	ErrRunActive = errors.New("quiz run already active")
	// ErrNotInProgress indicates an operation that requires an active run.
	ErrNotInProgress = errors.New("no quiz run in progress")
	// ErrFinalizeDeclined is returned when attempt submission failed and the
	// user chose to keep the run instead of discarding the results.
	ErrFinalizeDeclined = errors.New("finalization declined, results kept")
	// ErrEmptyBatch indicates a result batch with no valid entries.
	ErrEmptyBatch = errors.New("no valid quiz results to record")
)
