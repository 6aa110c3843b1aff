package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Clean exit, nothing alarming found
	ExitFindings      = 1 // Critical/high secrets or alerting domains found
	ExitUserError     = 2 // Invalid arguments or configuration
	ExitNetworkError  = 3 // Browser or network failure
	ExitInternalError = 4 // Unexpected internal error
)
