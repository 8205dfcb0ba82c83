package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Codes the client assigns when classifying a failure itself. Application
// codes from the tracker's error envelope are passed through verbatim and
// are not listed here.
const (
	CodeConnectionError = "CONNECTION_ERROR"
	CodeAuthFailed      = "AUTH_FAILED"
	CodeAuthForbidden   = "AUTH_FORBIDDEN"
	CodeParseError      = "PARSE_ERROR"
	CodeUnknownError    = "UNKNOWN_ERROR"
)

// Error is the only error type the client returns. Status is the HTTP status
// the classification is based on; 0 means the request never reached the
// server.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// FailureKind categorises a failure that happened before any HTTP response
// was received.
type FailureKind int

const (
	// FailureOther covers transport failures with no more specific advice.
	FailureOther FailureKind = iota
	// FailureRefused means the target host actively refused the connection.
	FailureRefused
	// FailureUnreachable means the target could not be resolved or reached
	// in time.
	FailureUnreachable
)

// Classifier maps a round-trip error onto a FailureKind. The client ships
// with ClassifyFailure but accepts a replacement for transports whose errors
// need different inspection.
type Classifier func(err error) FailureKind

// ClassifyFailure inspects the structured error chain from net/http rather
// than matching message substrings.
func ClassifyFailure(err error) FailureKind {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return FailureUnreachable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureUnreachable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureUnreachable
	}
	return FailureOther
}

func (c *Client) connectionError(err error) *Error {
	var message string
	switch c.classify(err) {
	case FailureRefused:
		message = fmt.Sprintf("connection refused by %s: the tracker service may be down", c.baseURL)
	case FailureUnreachable:
		message = fmt.Sprintf("cannot reach %s: check the configured base URL", c.baseURL)
	default:
		message = fmt.Sprintf("network error calling %s: %v", c.baseURL, err)
	}
	return &Error{Code: CodeConnectionError, Message: message, Status: 0}
}
