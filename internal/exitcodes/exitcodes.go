package exitcodes

// Exit codes for dirmanage commands.
// These codes form the operational contract with scripts and operators.
const (
	Success         = 0 // Successful execution
	PartialFailure  = 1 // Some items in a batch or tree failed
	InvalidConfig   = 2 // Configuration file or flags invalid
	SafetyViolation = 3 // Safety validator refused an operation
	RuntimeError    = 4 // Runtime error during execution
)
