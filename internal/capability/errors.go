package capability

import "errors"

// Registry errors.
var (
	// ErrNotFound is returned when a capability is not registered.
	ErrNotFound = errors.New("capability not found")

	// ErrAlreadyRegistered is returned when registering a duplicate name.
	ErrAlreadyRegistered = errors.New("capability already registered")

	// ErrNameEmpty is returned when a capability has no name.
	ErrNameEmpty = errors.New("capability name cannot be empty")

	// ErrRunNil is returned when a capability has no run function.
	ErrRunNil = errors.New("capability run function cannot be nil")

	// ErrInvalidParameter is returned when an argument fails schema
	// validation: missing required, wrong type, or outside the enum.
	ErrInvalidParameter = errors.New("invalid parameter")
)
