package backend

import (
	"errors"
	"fmt"
)

// ErrModelLoad marks failures while loading model weights. These are fatal
// for the current evaluation run; everything else the backend can report is
// recoverable at the sample level.
var ErrModelLoad = errors.New("model load failed")

// TokenCountError reports that tokenizing a text would need more tokens than
// the caller budgeted for. Required carries the backend's token count so the
// caller can shrink the text proportionally.
type TokenCountError struct {
	Required int
}

func (e *TokenCountError) Error() string {
	return fmt.Sprintf("tokenize: text requires %d tokens", e.Required)
}

// DecodeError reports a failed decode call. Code is the backend's status
// code, when it has one.
type DecodeError struct {
	Code int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed (code %d)", e.Code)
}
