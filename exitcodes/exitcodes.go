// Package exitcodes defines the standard exit codes used by flowtest.
package exitcodes

// Exit code constants used by flowtest binaries:
//
// * Success (0): Used when every executed case passes
// * TestFailure (1): Used when one or more cases fail or error
// * RuntimeErr (2): Used for runtime errors such as panics or configuration failures
const (
	Success     = 0 // All cases pass
	TestFailure = 1 // Case failures or errors
	RuntimeErr  = 2 // Runtime errors
)
