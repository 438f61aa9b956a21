package cache_fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/davarch/pipewatch/internal/domain"
)

// FSCache writes a JSON snapshot of all pipelines for bar and widget
// consumers.
type FSCache struct {
	path string
}

func New(path string) *FSCache { return &FSCache{path: path} }

type entry struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Activity  string `json:"activity"`
	Result    string `json:"result,omitempty"`
	Label     string `json:"label,omitempty"`
	WebURL    string `json:"web_url,omitempty"`
	Error     string `json:"error,omitempty"`
	Paused    string `json:"paused_until,omitempty"`
	Retrieved int64  `json:"retrieved"`
}

func (c *FSCache) Write(_ context.Context, pipelines []domain.Pipeline) error {
	if c.path == "" {
		return errors.New("cache path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	out := make([]entry, 0, len(pipelines))
	for _, p := range pipelines {
		e := entry{
			Name:      p.Name,
			URL:       p.Feed.URL,
			Activity:  string(p.Status.Activity),
			WebURL:    p.Status.WebURL,
			Error:     p.ConnectionError,
			Retrieved: p.LastUpdated.Unix(),
		}
		if b := p.Status.LastBuild; b != nil {
			e.Result = string(b.Result)
			e.Label = b.Label
		}
		if !p.Feed.PauseUntil.IsZero() {
			e.Paused = p.Feed.PauseUntil.Format(time.RFC3339)
		}
		out = append(out, e)
	}

	f, err := os.Create(c.path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
