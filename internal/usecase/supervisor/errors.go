package supervisor

import "errors"

var (
	// ErrUnknownSymbol means the symbol is not present in the loaded
	// market metadata for the exchange; the task is not created.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrMissingCredentials means the keystore has no usable credentials
	// for the exchange; the task is not created.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrUnknownExchange means no gateway driver is registered for the
	// exchange key.
	ErrUnknownExchange = errors.New("unknown exchange")

	// ErrAlreadyRunning rejects resuming a task whose loop is active.
	ErrAlreadyRunning = errors.New("task already running")

	// ErrTaskNotFound means no task exists with the given id.
	ErrTaskNotFound = errors.New("task not found")
)
