package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (unreadable or invalid config, cache unavailable)
	ExitDataError   = 3 // Data error (unknown identifier, record not found, not a PDF)
	ExitAPIError    = 4 // API error (NCBI, CrossRef or publisher unreachable, rate limit)
)
