package diag

import "errors"

// Sentinel errors for the genuinely fatal Go-level error paths: bad
// configuration files and storage I/O surfaced back to a caller. These sit
// alongside, not instead of, Ring: Ring is the pipeline's own non-fatal
// diagnostic channel and never returns a Go error.
var (
	// ErrNilCallback is returned by Slave.SetupInterface when any driver
	// callback is nil.
	ErrNilCallback = errors.New("slave: driver callback is nil")

	// ErrAlreadyConfigured is returned by SetupInterface called twice.
	ErrAlreadyConfigured = errors.New("slave: interface already configured")

	// ErrNotConfigured is returned by Initialise before SetupInterface.
	ErrNotConfigured = errors.New("slave: interface not configured")

	// ErrIdentityFailed is returned by Initialise when the hardware
	// identity collaborator rejects the unit.
	ErrIdentityFailed = errors.New("slave: hardware identity check failed")

	// ErrStorageRead / ErrStorageWrite wrap the non-volatile storage
	// collaborator's failures.
	ErrStorageRead  = errors.New("storage: read failed")
	ErrStorageWrite = errors.New("storage: write failed")
)
