package off

import (
	"errors"
	"fmt"
)

// Lookup failures are classified so callers can tell user mistakes apart
// from transport and server problems. None of them is retried here.
var (
	ErrInvalidBarcode  = errors.New("barcode must not be empty")
	ErrInvalidEndpoint = errors.New("invalid product API endpoint")
	ErrProductNotFound = errors.New("product not found")
)

// RequestError reports a transport-level failure, including timeouts.
type RequestError struct {
	Cause error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("product request failed: %v", e.Cause)
}

func (e *RequestError) Unwrap() error { return e.Cause }

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from product API", e.Code)
}

// DecodeError reports a malformed or schema-mismatched success body.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode product response: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
