// Package secrets_env resolves credentials from the config file's auth
// section with environment variables taking precedence. It implements the
// read-mostly secret store the feed readers share; all lookups are on
// immutable maps and therefore safe under concurrent fetches.
package secrets_env

import (
	"net/url"
	"os"
	"strings"
)

type Store struct {
	tokens    map[string]string
	passwords map[string]string
}

func New(tokens, passwords map[string]string) *Store {
	s := &Store{
		tokens:    make(map[string]string, len(tokens)),
		passwords: make(map[string]string, len(passwords)),
	}
	for k, v := range tokens {
		s.tokens[k] = v
	}
	for k, v := range passwords {
		s.passwords[k] = v
	}
	return s
}

// Token looks up a service token, e.g. PIPEWATCH_GITHUB_TOKEN for the
// "GitHub" service.
func (s *Store) Token(service string) (string, bool) {
	env := "PIPEWATCH_" + strings.ToUpper(service) + "_TOKEN"
	if v := os.Getenv(env); v != "" {
		return v, true
	}
	t, ok := s.tokens[service]
	return t, ok && t != ""
}

// Password resolves the basic-auth password for a feed URL, first by the
// exact URL, then by its user@host pair.
func (s *Store) Password(rawURL string) (string, bool) {
	if p, ok := s.passwords[rawURL]; ok && p != "" {
		return p, true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return "", false
	}
	key := u.User.Username() + "@" + u.Host
	p, ok := s.passwords[key]
	return p, ok && p != ""
}
