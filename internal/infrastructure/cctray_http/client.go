package cctray_http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/davarch/pipewatch/internal/domain"
)

// Client polls cctray XML status feeds. One instance serves any number of
// feed URLs; the scheduler hands it the whole group of pipelines sharing an
// endpoint so that a cycle costs a single GET per server.
type Client struct {
	secrets domain.SecretStore
	hc      *http.Client
}

func New(secrets domain.SecretStore, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		secrets: secrets,
		hc:      &http.Client{Transport: tr, Timeout: timeout},
	}
}

func (c *Client) Update(ctx context.Context, pipelines []domain.Pipeline) []domain.Update {
	if len(pipelines) == 0 {
		return nil
	}

	doc, err := c.fetch(ctx, pipelines[0].Feed.URL)
	out := make([]domain.Update, 0, len(pipelines))
	for _, p := range pipelines {
		if err != nil {
			out = append(out, domain.UpdateFor(p.Key(), domain.Status{}, err))
			continue
		}
		st, ok := doc.StatusFor(p.Feed.Name)
		if !ok {
			out = append(out, domain.UpdateFor(p.Key(), domain.Status{}, domain.ErrNoStatus))
			continue
		}
		out = append(out, domain.UpdateFor(p.Key(), st, nil))
	}
	return out
}

// ProjectNames fetches a feed and returns the project names it advertises.
// Used by dynamic feed sync.
func (c *Client) ProjectNames(ctx context.Context, feedURL string) ([]string, error) {
	doc, err := c.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return doc.ProjectNames(), nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, domain.ErrInvalidURL
	}

	var user, pass string
	if u.User != nil {
		user = u.User.Username()
		if pw, set := u.User.Password(); set {
			pass = pw
		} else if user != "" {
			stored, ok := c.secrets.Password(rawURL)
			if !ok {
				return nil, &domain.MissingCredentialError{URL: rawURL}
			}
			pass = stored
		}
		u.User = nil
	}

	var doc *Document
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "build request"))
		}
		if user != "" {
			req.SetBasicAuth(user, pass)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return &domain.ConnectionError{Cause: err}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return &domain.HTTPError{StatusCode: resp.StatusCode}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(&domain.HTTPError{StatusCode: resp.StatusCode})
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &domain.ConnectionError{Cause: err}
		}
		parsed, err := Parse(body)
		if err != nil {
			return backoff.Permanent(err)
		}
		doc = parsed
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return doc, nil
}

func newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 5 * time.Second
	return bo
}
