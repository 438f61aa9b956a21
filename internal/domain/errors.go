package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoStatus means the server answered with a well-formed document that
// simply carries no record for this pipeline.
var ErrNoStatus = errors.New("no status available for pipeline")

// ErrInvalidURL means the feed URL could not be parsed at all.
var ErrInvalidURL = errors.New("invalid feed URL")

// MissingCredentialError is raised when a feed URL names a user but the
// secret store holds no password for it. It fails the poll; it is not a
// silent "no auth".
type MissingCredentialError struct {
	URL string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no password stored for %s", e.URL)
}

// ConnectionError wraps a transport-level failure (dial, TLS, timeout).
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// HTTPError is a non-success response that is not a rate limit.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ParseError wraps a malformed payload.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed server response: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// RateLimitError is a server-imposed cooldown. It is never surfaced as a
// pipeline connection error; the scheduler records it on the feed instead.
type RateLimitError struct {
	ResumeAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResumeAt.Format(time.RFC1123))
}

// Describe turns a poll error into the short human-readable string shown
// next to the pipeline.
func Describe(err error) string {
	var (
		missing *MissingCredentialError
		conn    *ConnectionError
		httpErr *HTTPError
		parse   *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoStatus):
		return "The server did not provide a status for this pipeline."
	case errors.Is(err, ErrInvalidURL):
		return "The feed URL is not valid."
	case errors.As(err, &missing):
		return "No password stored for this server."
	case errors.As(err, &httpErr):
		if httpErr.StatusCode == http.StatusNotFound {
			return "not found"
		}
		return fmt.Sprintf("The server responded with %d %s.",
			httpErr.StatusCode, http.StatusText(httpErr.StatusCode))
	case errors.As(err, &parse):
		return "The server response could not be parsed."
	case errors.As(err, &conn):
		return "Could not connect to the server."
	default:
		return err.Error()
	}
}
