package api

import (
	"errors"
	"fmt"

	"github.com/weiliu/h5client/internal/models"
)

// Kind classifies the outcome of a gateway call.
type Kind int

const (
	KindSuccess Kind = iota
	KindTransport
	KindApplication
	KindSessionExpired
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	case KindSessionExpired:
		return "session_expired"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

var (
	// ErrTransport indicates the request never produced a usable 2xx response.
	ErrTransport = errors.New("transport failure")
	// ErrApplication indicates the backend answered with a non-success code.
	ErrApplication = errors.New("application failure")
	// ErrSessionExpired indicates the backend rejected the stored credential.
	ErrSessionExpired = errors.New("session expired")
	// ErrValidation indicates client-side input checks failed before any request.
	ErrValidation = errors.New("validation failure")
)

// Messages surfaced when the backend does not supply one.
const (
	MessageRequestFailed  = "request failed"
	MessageNetworkError   = "network error, please try again"
	MessageSessionExpired = "session expired, please log in again"
)

// Result is the tagged outcome of a gateway call. Only KindSuccess results
// have decoded data.
type Result struct {
	Kind    Kind
	Message string
	// Code is the envelope code, zero when no envelope was decoded.
	Code int
	// Status is the HTTP status, zero when no response arrived.
	Status int
	Cause  error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

// Err converts a failed result into an *Error, returning nil on success.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.Message, Code: r.Code, Status: r.Status, Cause: r.Cause}
}

// Validation builds a result for input rejected before reaching the network.
func Validation(message string) Result {
	return Result{Kind: KindValidation, Message: message}
}

// Error is the error form of a failed Result. It matches the sentinel for its
// kind under errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel := sentinelFor(e.Kind); sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func sentinelFor(kind Kind) error {
	switch kind {
	case KindTransport:
		return ErrTransport
	case KindApplication:
		return ErrApplication
	case KindSessionExpired:
		return ErrSessionExpired
	case KindValidation:
		return ErrValidation
	default:
		return nil
	}
}

// Message returns the user-facing message carried by err when it came from the
// gateway, or err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// ListData is the data shape of paginated list endpoints.
type ListData[T any] struct {
	List      []T `json:"list"`
	TotalPage int `json:"totalPage"`
}

// Page converts the payload into a page for pageNumber.
func (d ListData[T]) Page(pageNumber int) models.Page[T] {
	return models.Page[T]{Items: d.List, PageNumber: pageNumber, TotalPages: d.TotalPage}
}
