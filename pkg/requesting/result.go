// Package requesting correlates requests crossing the host boundary with
// their eventual results.
package requesting

import (
	"errors"
	"fmt"

	"github.com/morezero/message-bridge/pkg/value"
)

// RequestID identifies one outstanding request within an AsyncRequestsStorage.
type RequestID int64

// RequestStatus is the outcome kind of a finished request.
type RequestStatus int

const (
	RequestSucceeded RequestStatus = iota
	RequestFailed
	RequestCanceled
)

func (s RequestStatus) String() string {
	switch s {
	case RequestSucceeded:
		return "succeeded"
	case RequestFailed:
		return "failed"
	case RequestCanceled:
		return "canceled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

const canceledMessage = "The request was canceled"

// ErrRequestCanceled is returned for requests resolved by cancellation.
var ErrRequestCanceled = errors.New(canceledMessage)

// RemoteError carries the failure message reported by the other side.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// GenericRequestResult is the outcome delivered to a request callback.
type GenericRequestResult struct {
	status       RequestStatus
	payload      value.Value
	errorMessage string
}

// Succeeded builds a successful result carrying payload.
func Succeeded(payload value.Value) GenericRequestResult {
	return GenericRequestResult{status: RequestSucceeded, payload: payload}
}

// Failed builds a failed result carrying message.
func Failed(message string) GenericRequestResult {
	return GenericRequestResult{status: RequestFailed, errorMessage: message}
}

// Canceled builds a canceled result.
func Canceled() GenericRequestResult {
	return GenericRequestResult{status: RequestCanceled, errorMessage: canceledMessage}
}

func (r GenericRequestResult) Status() RequestStatus { return r.status }
func (r GenericRequestResult) IsSuccessful() bool    { return r.status == RequestSucceeded }
func (r GenericRequestResult) Payload() value.Value  { return r.payload }
func (r GenericRequestResult) ErrorMessage() string  { return r.errorMessage }

// Err converts a non-successful result into an error: *RemoteError for
// failures and ErrRequestCanceled for cancellations.
func (r GenericRequestResult) Err() error {
	switch r.status {
	case RequestSucceeded:
		return nil
	case RequestCanceled:
		return ErrRequestCanceled
	}
	return &RemoteError{Message: r.errorMessage}
}
