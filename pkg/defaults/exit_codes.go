package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Clean exit
	ExitDegraded      = 1 // --strict and at least one service is not good
	ExitUserError     = 2 // Invalid arguments or configuration
	ExitNetworkError  = 3 // Registry or base location unreachable
	ExitInternalError = 4 // Unexpected internal error
)
