package cache_fs

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/davarch/pipewatch/internal/domain"
)

func TestCache_WriteCreatesSnapshot(t *testing.T) {
	tmp := t.TempDir()
	path := tmp + "/status.json"

	c := New(path)
	pipelines := []domain.Pipeline{
		{
			Name: "widgets",
			Feed: domain.Feed{Type: domain.FeedTypeCCTray, URL: "http://ci/feed", Name: "widgets"},
			Status: domain.Status{
				Activity:  domain.ActivitySleeping,
				LastBuild: &domain.Build{Result: domain.ResultSuccess, Label: "9"},
				WebURL:    "http://ci/feed/9",
			},
			LastUpdated: time.Unix(1234, 0),
		},
		{
			Name:            "broken",
			Feed:            domain.Feed{Type: domain.FeedTypeGitHub, URL: "http://api/runs"},
			Status:          domain.Status{Activity: domain.ActivityOther},
			ConnectionError: "not found",
		},
	}
	if err := c.Write(context.Background(), pipelines); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}

	var out []map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0]["result"] != "success" || out[0]["label"] != "9" {
		t.Errorf("first entry wrong: %v", out[0])
	}
	if out[1]["error"] != "not found" {
		t.Errorf("second entry wrong: %v", out[1])
	}
}

func TestCache_EmptyPathIsAnError(t *testing.T) {
	c := New("")
	if err := c.Write(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}
