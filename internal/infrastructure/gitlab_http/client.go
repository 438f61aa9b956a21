package gitlab_http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/davarch/pipewatch/internal/domain"
)

// TokenService is the secret-store key for the access token.
const TokenService = "GitLab"

// Client polls the pipelines REST endpoint of one pipeline per group and
// enriches builds with per-pipeline detail fetches.
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
	st, ok := doc.Status()
	if !ok {
		return domain.Status{}, domain.ErrNoStatus
	}

	// Detail fetches fill in fields the listing omits. A failed enrichment
	// degrades to the un-enriched build; it never discards the update.
	c.enrich(ctx, p.Feed.URL, st.CurrentBuild)
	c.enrich(ctx, p.Feed.URL, st.LastBuild)
	return st, nil
}

func (c *Client) enrich(ctx context.Context, feedURL string, b *domain.Build) {
	if b == nil || b.ID == "" {
		return
	}
	detailURL, err := detailURLFor(feedURL, b.ID)
	if err != nil {
		return
	}
	body, err := c.fetch(ctx, detailURL)
	if err != nil {
		return
	}
	var d detailDTO
	if err := json.Unmarshal(body, &d); err != nil {
		return
	}
	if d.Duration > 0 && b.Duration == 0 {
		b.Duration = time.Duration(d.Duration * float64(time.Second))
	}
	if d.User.Name != "" {
		b.User = d.User.Name
	}
	if d.User.AvatarURL != "" {
		b.Avatar = d.User.AvatarURL
	}
}

func detailURLFor(feedURL, id string) (string, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", err
	}
	u.Path = u.Path + "/" + id
	u.RawQuery = ""
	return u.String(), nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "build request"))
		}
		if token, ok := c.secrets.Token(TokenService); ok && token != "" {
			req.Header.Set("PRIVATE-TOKEN", token)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return &domain.ConnectionError{Cause: err}
		}
		defer func() { _ = resp.Body.Close() }()

		if err := classifyStatus(resp); err != nil {
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

// classifyStatus treats a 403/429 as a rate limit only when the server says
// the request budget is exhausted.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		if resp.Header.Get("RateLimit-Remaining") == "0" {
			reset, err := strconv.ParseInt(resp.Header.Get("RateLimit-Reset"), 10, 64)
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
