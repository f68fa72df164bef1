package domain

import "errors"

var (
	// ErrInvalidFormat is returned when a client line does not match the
	// command grammar. The session answers "Invalid Command Format".
	ErrInvalidFormat = errors.New("invalid command format")

	// ErrUnknownCommand is returned at dispatch when a well-formed line
	// carries a command name the server does not implement.
	ErrUnknownCommand = errors.New("invalid command name")
)

// ProviderError wraps a failed rate lookup against the external quote API.
// It is scoped to a single (date, symbol) pair and never aborts sibling
// lookups; the resolver omits the symbol from the response.
type ProviderError struct {
	Symbol string
	Err    error
}

func (e *ProviderError) Error() string {
	return "provider lookup failed [" + e.Symbol + "]: " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a ProviderError for the given symbol.
func NewProviderError(symbol string, err error) *ProviderError {
	return &ProviderError{Symbol: symbol, Err: err}
}

// StoreError wraps a persistence failure. Op names the store operation that
// failed ("lookup", "insert", "clear"). Duplicate-key conflicts are not
// store errors; the store ignores them.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError for the given operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
