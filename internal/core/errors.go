package core

import "errors"

// Error kinds surfaced by the pipeline. Callers match them with errors.Is;
// the underlying cause stays reachable through the wrap chain.
var (
	// ErrValidation marks malformed or empty input handed to a stage.
	// No catalog call has been made when it is returned.
	ErrValidation = errors.New("validation error")
	// ErrAuthentication marks a failure to obtain a catalog client.
	ErrAuthentication = errors.New("authentication error")
	// ErrIO marks a failure to create the output directory or write the file.
	ErrIO = errors.New("i/o error")
)
