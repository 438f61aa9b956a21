package domain

import (
	"context"
	"sync"
)

type MockReader struct {
	mu      sync.Mutex
	Updates map[PipelineKey]Update
	Calls   int
	Groups  [][]Pipeline
}

func (m *MockReader) Update(_ context.Context, pipelines []Pipeline) []Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Groups = append(m.Groups, pipelines)
	out := make([]Update, 0, len(pipelines))
	for _, p := range pipelines {
		if u, ok := m.Updates[p.Key()]; ok {
			u.Key = p.Key()
			out = append(out, u)
			continue
		}
		out = append(out, Update{Key: p.Key(), Status: Status{Activity: ActivitySleeping}})
	}
	return out
}

func (m *MockReader) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

type MockSecrets struct {
	Passwords map[string]string
	Tokens    map[string]string
}

func (m *MockSecrets) Password(url string) (string, bool) {
	p, ok := m.Passwords[url]
	return p, ok
}

func (m *MockSecrets) Token(service string) (string, bool) {
	t, ok := m.Tokens[service]
	return t, ok
}

type MockNotifier struct {
	mu       sync.Mutex
	Messages []string
	Err      error
}

func (n *MockNotifier) Notify(_ context.Context, title, body, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, title+"|"+body+"|"+url)
	return n.Err
}

func (n *MockNotifier) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.Messages...)
}

type MockCache struct {
	mu     sync.Mutex
	Writes int
	Last   []Pipeline
	Err    error
}

func (c *MockCache) Write(_ context.Context, pipelines []Pipeline) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Writes++
	c.Last = pipelines
	return nil
}
