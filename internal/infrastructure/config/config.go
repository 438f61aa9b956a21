package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/davarch/pipewatch/internal/domain"
)

type Pipeline struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Project string `yaml:"project,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

// Domain converts one config entry into the runtime pipeline model. The
// cctray project name defaults to the display name.
func (p Pipeline) Domain() domain.Pipeline {
	project := p.Project
	if project == "" {
		project = p.Name
	}
	return domain.Pipeline{
		Name: p.Name,
		Feed: domain.Feed{
			Type: domain.FeedType(p.Type),
			URL:  p.URL,
			Name: project,
		},
		Status: domain.Status{Activity: domain.ActivityOther},
	}
}

type Source struct {
	ID            string `yaml:"id,omitempty"`
	URL           string `yaml:"url"`
	Enabled       bool   `yaml:"enabled"`
	RemoveDeleted bool   `yaml:"remove_deleted"`
}

type Config struct {
	Poll struct {
		Interval     time.Duration `yaml:"interval"`
		Timeout      time.Duration `yaml:"timeout"`
		SyncInterval time.Duration `yaml:"sync_interval"`
	} `yaml:"poll"`

	Pipelines []Pipeline `yaml:"pipelines"`
	Sources   []Source   `yaml:"sources"`

	Auth struct {
		Tokens    map[string]string `yaml:"tokens,omitempty"`
		Passwords map[string]string `yaml:"passwords,omitempty"`
	} `yaml:"auth"`

	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`
}

var feedTypes = map[string]bool{
	string(domain.FeedTypeCCTray): true,
	string(domain.FeedTypeGitHub): true,
	string(domain.FeedTypeGitLab): true,
}

// The scheduler trusts whatever interval it is handed; the floor lives
// here so a typo cannot storm the servers.
const minInterval = 5 * time.Second

func Load(path string) (Config, error) {
	var c Config

	c.Poll.Interval = 15 * time.Second
	c.Poll.Timeout = 10 * time.Second
	c.Poll.SyncInterval = 5 * time.Minute
	c.Cache.Path = expandHome("~/.cache/pipewatch/status.json")

	if path != "" {
		if b, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(b, &c); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("PIPEWATCH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Poll.Interval = d
		}
	}
	if v := os.Getenv("PIPEWATCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Poll.Timeout = d
		}
	}
	if v := os.Getenv("PIPEWATCH_CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}

	c.Cache.Path = expandHome(c.Cache.Path)

	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 15 * time.Second
	}
	if c.Poll.Interval < minInterval {
		c.Poll.Interval = minInterval
	}
	if c.Poll.Timeout <= 0 {
		c.Poll.Timeout = 10 * time.Second
	}
	if c.Poll.SyncInterval <= 0 {
		c.Poll.SyncInterval = 5 * time.Minute
	}

	for _, p := range c.Pipelines {
		if p.Name == "" || p.URL == "" {
			return c, errors.New("every pipeline needs a name and a url")
		}
		if !feedTypes[p.Type] {
			return c, errors.New("unknown feed type " + p.Type + " for pipeline " + p.Name)
		}
	}
	for _, s := range c.Sources {
		if s.URL == "" {
			return c, errors.New("every source needs a url")
		}
	}
	if len(c.Pipelines) == 0 && len(c.Sources) == 0 {
		return c, errors.New("no pipelines or sources configured (YAML)")
	}

	return c, nil
}

func Save(path string, c Config) error {
	if path == "" {
		return errors.New("empty config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lockFile := path + ".lock"
	lf, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = lf.Close() }()

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			return err
		}
		defer func() { _ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN) }()
	}

	b, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if h, _ := os.UserHomeDir(); h != "" {
			return h + p[1:]
		}
	}
	return p
}
