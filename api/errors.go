package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an API failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindServer
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

var (
	// ErrValidation matches errors of KindValidation.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized matches errors of KindUnauthorized.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden matches errors of KindForbidden.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound matches errors of KindNotFound.
	ErrNotFound = errors.New("not found")
	// ErrConflict matches errors of KindConflict.
	ErrConflict = errors.New("conflict")
	// ErrServer matches errors of KindServer.
	ErrServer = errors.New("server error")
	// ErrNetwork matches errors of KindNetwork.
	ErrNetwork = errors.New("network error")
)

// Error is a failed API call. Message is the server's user-facing message
// when it sent one.
type Error struct {
	Status      int
	Message     string
	FieldErrors map[string]string
	Kind        Kind
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("api: ")
	if e.Status > 0 {
		fmt.Fprintf(&b, "%d ", e.Status)
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrServer:
		return e.Kind == KindServer
	case ErrNetwork:
		return e.Kind == KindNetwork
	}
	return false
}

// KindForStatus maps an HTTP status to a Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindServer
	}
	return KindUnknown
}

// errorBody is the server's error envelope.
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
	Status  int             `json:"status"`
}

// ErrorBody is the envelope written by servers speaking this API.
type ErrorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Status  int               `json:"status"`
}

// NewError builds an Error for status with a message and optional field
// errors.
func NewError(status int, message string, fields map[string]string) *Error {
	return &Error{Status: status, Message: message, FieldErrors: fields, Kind: KindForStatus(status)}
}

// decodeError turns a non-2xx response body into an *Error. Bodies that
// are not the JSON envelope are used as the message verbatim when short.
func decodeError(status int, raw []byte) *Error {
	e := &Error{Status: status, Kind: KindForStatus(status)}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
		e.FieldErrors = decodeFieldErrors(body.Errors)
		return e
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) <= 512 && !strings.HasPrefix(text, "<") {
		e.Message = text
	}
	return e
}

// decodeFieldErrors accepts {"field":"msg"} or ["msg", ...].
func decodeFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var byField map[string]string
	if err := json.Unmarshal(raw, &byField); err == nil {
		return byField
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		out := make(map[string]string, len(list))
		for i, msg := range list {
			out[fmt.Sprintf("%d", i)] = msg
		}
		return out
	}
	return nil
}

// UserMessage returns the message to show for err: the server's message
// when present, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
