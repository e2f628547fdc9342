package notifiers

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsupportedMethod is returned by ParseMethod for anything but the five verbs below
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// Method is an HTTP verb a webhook may be configured with
type Method int

const (
	MethodDelete Method = iota + 1
	MethodGet
	MethodPatch
	MethodPost
	MethodPut
)

// ParseMethod maps a configured token to a Method. Matching is case-sensitive.
func ParseMethod(s string) (Method, error) {
	switch s {
	case http.MethodDelete:
		return MethodDelete, nil
	case http.MethodGet:
		return MethodGet, nil
	case http.MethodPatch:
		return MethodPatch, nil
	case http.MethodPost:
		return MethodPost, nil
	case http.MethodPut:
		return MethodPut, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
}

func (m Method) String() string {
	switch m {
	case MethodDelete:
		return http.MethodDelete
	case MethodGet:
		return http.MethodGet
	case MethodPatch:
		return http.MethodPatch
	case MethodPost:
		return http.MethodPost
	case MethodPut:
		return http.MethodPut
	}
	return "UNKNOWN"
}

// HasBody reports whether requests with this method carry the multipart payload
func (m Method) HasBody() bool {
	switch m {
	case MethodPatch, MethodPost, MethodPut:
		return true
	}
	return false
}
