package domain

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the kind of a failed lookup.
type ErrorCode int

const (
	CodeConnection ErrorCode = -1000
	CodeHTTP       ErrorCode = -1001
	CodeParse      ErrorCode = -1002
)

// ErrBusy is returned by blocking geocoders when a lookup is already in flight.
var ErrBusy = errors.New("geocode lookup already in progress")

// ConnectionError reports a transport-level failure (DNS, TLS, timeout, reset).
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string   { return fmt.Sprintf("connection error: %v", e.Err) }
func (e *ConnectionError) Unwrap() error   { return e.Err }
func (e *ConnectionError) Code() ErrorCode { return CodeConnection }

// HTTPError reports a response with a status other than 200.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string   { return fmt.Sprintf("received HTTP status code %d", e.StatusCode) }
func (e *HTTPError) Code() ErrorCode { return CodeHTTP }

// ParseError reports a response body that is not a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string   { return fmt.Sprintf("unable to parse results: %v", e.Err) }
func (e *ParseError) Unwrap() error   { return e.Err }
func (e *ParseError) Code() ErrorCode { return CodeParse }

// Coded is implemented by all lookup errors.
type Coded interface {
	error
	Code() ErrorCode
}

// CodeOf returns the lookup error code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code(), true
	}
	return 0, false
}
