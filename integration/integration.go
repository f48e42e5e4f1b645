// Package integration types the failures of optional outbound services
// (LLM providers, email, SMS, Redis) so callers can log and count them
// without failing the request that triggered them.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aws/smithy-go"
)

type Kind int

const (
	KindUnconfigured Kind = iota + 1
	KindTimeout
	KindRateLimited
	KindInvalidResponse
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnconfigured:
		return "unconfigured"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidResponse:
		return "invalid_response"
	case KindUnavailable:
		return "unavailable"
	}
	return "unknown"
}

var (
	ErrUnconfigured    = errors.New("not configured")
	ErrInvalidResponse = errors.New("invalid response")
)

type Error struct {
	Service string
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(service string, kind Kind, err error) *Error {
	return &Error{Service: service, Kind: kind, Err: err}
}

func Unconfigured(service string) *Error {
	return New(service, KindUnconfigured, ErrUnconfigured)
}

// StatusError is returned by HTTP clients for non-2xx replies.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

var throttlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"TooManyRequestsException":               true,
	"RequestLimitExceeded":                   true,
	"MaxSendingRateExceeded":                 true,
	"ProvisionedThroughputExceededException": true,
}

// Classify wraps err as an *Error of the kind that best describes it.
// Errors that are already classified pass through unchanged.
func Classify(service string, err error) error {
	if err == nil {
		return nil
	}

	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return New(service, kindOf(err), err)
}

func kindOf(err error) Kind {
	if errors.Is(err, ErrUnconfigured) {
		return KindUnconfigured
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		return kindOfStatus(se.StatusCode)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		if throttlingCodes[ae.ErrorCode()] {
			return KindRateLimited
		}
		if ae.ErrorFault() == smithy.FaultClient {
			return KindInvalidResponse
		}
	}
	var hs interface{ HTTPStatusCode() int }
	if errors.As(err, &hs) {
		return kindOfStatus(hs.HTTPStatusCode())
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, ErrInvalidResponse) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindInvalidResponse
	}

	return KindUnavailable
}

func kindOfStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnconfigured
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUnavailable
	case status >= 400:
		return KindInvalidResponse
	}
	return KindUnavailable
}

// KindOf reports the kind of a classified error, or 0.
func KindOf(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return 0
}
