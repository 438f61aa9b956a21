package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"no status", ErrNoStatus, "The server did not provide a status for this pipeline."},
		{"wrapped no status", fmt.Errorf("poll: %w", ErrNoStatus), "The server did not provide a status for this pipeline."},
		{"invalid url", ErrInvalidURL, "The feed URL is not valid."},
		{"missing credential", &MissingCredentialError{URL: "https://dev@ci.example.com/x"}, "No password stored for this server."},
		{"not found", &HTTPError{StatusCode: 404}, "not found"},
		{"server error", &HTTPError{StatusCode: 500}, "The server responded with 500 Internal Server Error."},
		{"parse", &ParseError{Cause: errors.New("bad xml")}, "The server response could not be parsed."},
		{"connection", &ConnectionError{Cause: errors.New("dial tcp: refused")}, "Could not connect to the server."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Describe(tc.err))
		})
	}
}

func TestRateLimitError_MentionsResumeTime(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	e := &RateLimitError{ResumeAt: at}
	assert.Contains(t, e.Error(), "2026")
}
