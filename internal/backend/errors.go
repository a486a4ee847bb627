package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrBackendUnavailable is returned by callers that probed the backend and
// found it down, so no generation request was made.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrorKind categorizes generation failures.
type ErrorKind int

const (
	KindUnreachable ErrorKind = iota
	KindTimeout
	KindBadStatus
	KindMalformedResponse
	// the caller's context was cancelled, usually on shutdown
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindBadStatus:
		return "bad_status"
	case KindMalformedResponse:
		return "malformed_response"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// GenerationError is the only error type Generate returns.
type GenerationError struct {
	Kind       ErrorKind
	StatusCode int    // set for KindBadStatus
	Detail     string // structured error detail from the service, if any
	Cause      error
}

func (e *GenerationError) Error() string {
	msg := "generate: " + e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// UserMessage is the text shown to the chat user for this failure.
func (e *GenerationError) UserMessage() string {
	switch e.Kind {
	case KindUnreachable:
		return "Backend unreachable. Make sure the local model server is running."
	case KindTimeout:
		return "Generation exceeded time budget. Try a smaller model or fewer tokens (/settings tokens 300)."
	case KindBadStatus:
		if e.Detail != "" {
			return "Backend error: " + e.Detail
		}
		return fmt.Sprintf("Backend error: status %d", e.StatusCode)
	case KindMalformedResponse:
		return "Could not parse a completion from the response."
	case KindCanceled:
		return "The request was cancelled before a reply was ready."
	default:
		return "Unexpected error while generating a reply."
	}
}

// classifyTransport maps an http.Client error onto a GenerationError.
func classifyTransport(err error) *GenerationError {
	if errors.Is(err, context.Canceled) {
		return &GenerationError{Kind: KindCanceled, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{Kind: KindTimeout, Cause: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &GenerationError{Kind: KindTimeout, Cause: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &GenerationError{Kind: KindTimeout, Cause: err}
	}
	return &GenerationError{Kind: KindUnreachable, Cause: err}
}

// isConnectionFailure reports whether err means nothing is listening.
func isConnectionFailure(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
