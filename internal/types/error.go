package types

import "fmt"

// CustomError is the transport-level error shape rendered by the fiber
// error handler.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// DomainLinkError signals an invariant violation in linking or syncing:
// duplicate active link, missing upstream entity, ambiguous multi-master
// target. Surfaced to the user as an actionable message, never retried.
type DomainLinkError struct {
	Message string
}

func (e *DomainLinkError) Error() string {
	return e.Message
}

// NewDomainLinkError builds a DomainLinkError with a formatted message.
func NewDomainLinkError(format string, args ...interface{}) *DomainLinkError {
	return &DomainLinkError{Message: fmt.Sprintf(format, args...)}
}

// RemoteRequestError is a transport failure talking to a remote upstream:
// connection error or an unexpected non-200 response.
type RemoteRequestError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("remote request to %s returned status %d", e.URL, e.StatusCode)
}

func (e *RemoteRequestError) Unwrap() error {
	return e.Err
}

// RemoteAuthError is an HTTP 401 from a remote upstream.
type RemoteAuthError struct {
	URL string
}

func (e *RemoteAuthError) Error() string {
	return fmt.Sprintf("remote request to %s was not authenticated", e.URL)
}

// ActionNotPermitted is an HTTP 403 from a remote upstream: the caller is
// authenticated but is not an allowed downstream partner for the resource.
type ActionNotPermitted struct {
	URL string
}

func (e *ActionNotPermitted) Error() string {
	if e.URL == "" {
		return "this action is not permitted"
	}
	return fmt.Sprintf("remote request to %s was not permitted", e.URL)
}

// UnsupportedActionError means the caller asked to sync content that
// structurally cannot be synced (for example a non-global lookup table).
type UnsupportedActionError struct {
	Message string
}

func (e *UnsupportedActionError) Error() string {
	return e.Message
}

// MultimediaMissingError is raised when an app pull still leaves
// multimedia unresolved after an attempted re-fetch. Only enforced when
// strict multimedia checking is enabled for the downstream domain.
type MultimediaMissingError struct {
	MediaID string
}

func (e *MultimediaMissingError) Error() string {
	return fmt.Sprintf("multimedia %s is missing and could not be fetched", e.MediaID)
}

// AppEditingError signals a structural problem while merging a pulled
// application, such as a report module referencing an unmapped report.
type AppEditingError struct {
	Message string
}

func (e *AppEditingError) Error() string {
	return e.Message
}

// NewAppEditingError builds an AppEditingError with a formatted message.
func NewAppEditingError(format string, args ...interface{}) *AppEditingError {
	return &AppEditingError{Message: fmt.Sprintf(format, args...)}
}
