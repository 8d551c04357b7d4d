package flagcore

import "errors"

// Sentinel errors an embedder can check with errors.Is.
var (
	// ErrClientClosed reports use of a closed client. No function in this
	// package returns it; Close itself is idempotent and returns nil.
	ErrClientClosed = errors.New("flagcore: client is closed")
	// ErrInitTimeout reports that initialization did not complete in time.
	// No function in this package returns it: Init returns the Registry, and
	// AwaitInitialized reports a timeout as a false result.
	ErrInitTimeout = errors.New("flagcore: timed out waiting for initialization")
	// ErrRestoreFailed is returned by Client.RestoreFlags on a malformed
	// blob; the store is left untouched.
	ErrRestoreFailed = errors.New("flagcore: failed to restore flags from blob")
	// ErrInvalidConfig is returned, wrapped, by configfile.Load and
	// configfile.Parse when the file has no credential. NewRegistry does not
	// return it; it logs what Config.Validate reports instead.
	ErrInvalidConfig = errors.New("flagcore: invalid configuration")
)
