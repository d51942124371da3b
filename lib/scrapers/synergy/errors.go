package synergy

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginFailed indicates the portal rejected the credential POST.
	// Retrying with the same credentials cannot succeed.
	ErrLoginFailed = errors.New("login failed")

	// ErrMalformedPage indicates a page or script violated the structural
	// assumptions this scraper encodes. It usually means the portal
	// changed its markup, not that anything transient went wrong.
	ErrMalformedPage = errors.New("unexpected page structure")

	// ErrCourseNotFound indicates a course reference resolved to zero or
	// multiple courses.
	ErrCourseNotFound = errors.New("course not found")
)

// StatusError is a non-success HTTP response from the portal. These are
// frequently transient (expired cookies, half-dead sessions) and are the
// one fault class worth retrying.
type StatusError struct {
	Action     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%q failed with status %d: %s", e.Action, e.StatusCode, body)
}
