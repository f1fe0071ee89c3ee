package gateway

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound indicates the exchange no longer reports the order.
// The caller cannot distinguish a filled-and-purged order from a transient
// lookup failure; the loop resolves the ambiguity heuristically.
var ErrOrderNotFound = errors.New("order not found")

// Error wraps any exchange-level failure (network, auth, rate limit,
// rejection). The supervisor treats all of them uniformly as retryable.
type Error struct {
	Exchange string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Exchange, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WrapErr wraps err as a gateway Error unless it already is one or is nil
func WrapErr(exchange, op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Exchange: exchange, Op: op, Err: err}
}

// IsNotFound reports whether err means the order is unknown to the exchange
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}
