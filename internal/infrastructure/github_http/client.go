package github_http

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/davarch/pipewatch/internal/domain"
)

// TokenService is the secret-store key for the bearer token.
const TokenService = "GitHub"

// Client polls the workflow-runs REST endpoint of one pipeline per group.
type Client struct {
	secrets domain.SecretStore
	hc      *http.Client
	now     func() time.Time
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
		now:     time.Now,
	}
}

func (c *Client) Update(ctx context.Context, pipelines []domain.Pipeline) []domain.Update {
	out := make([]domain.Update, 0, len(pipelines))
	for _, p := range pipelines {
		if p.Feed.IsPaused(c.now()) {
			// The backoff message on the pipeline stays as it is.
			continue
		}
		st, err := c.poll(ctx, p)
		out = append(out, domain.UpdateFor(p.Key(), st, err))
	}
	return out
}

func (c *Client) poll(ctx context.Context, p domain.Pipeline) (domain.Status, error) {
	body, err := c.fetch(ctx, p.Feed.URL)
	if err != nil {
		return domain.Status{}, err
	}
	doc, err := Parse(body)
	if err != nil {
		return domain.Status{}, err
	}
	st, ok := doc.StatusFor(p.Name)
	if !ok {
		return domain.Status{}, domain.ErrNoStatus
	}
	return st, nil
}

func (c *Client) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "build request"))
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if token, ok := c.secrets.Token(TokenService); ok && token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return &domain.ConnectionError{Cause: err}
		}
		defer func() { _ = resp.Body.Close() }()

		if err := classifyStatus(resp, "x-ratelimit-remaining", "x-ratelimit-reset"); err != nil {
			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &domain.ConnectionError{Cause: err}
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// classifyStatus separates real rate limiting from an ordinary forbidden.
// The status code alone is ambiguous: only a zero remaining-requests header
// makes a 403/429 a rate limit.
func classifyStatus(resp *http.Response, remainingHeader, resetHeader string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		if resp.Header.Get(remainingHeader) == "0" {
			reset, err := strconv.ParseInt(resp.Header.Get(resetHeader), 10, 64)
			if err == nil && reset > 0 {
				return backoff.Permanent(&domain.RateLimitError{ResumeAt: time.Unix(reset, 0)})
			}
		}
		return backoff.Permanent(&domain.HTTPError{StatusCode: resp.StatusCode})
	case resp.StatusCode >= 500:
		return &domain.HTTPError{StatusCode: resp.StatusCode}
	default:
		return backoff.Permanent(&domain.HTTPError{StatusCode: resp.StatusCode})
	}
}

func newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 5 * time.Second
	return bo
}
