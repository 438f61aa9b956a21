package domain

import "context"

// FeedReader performs one poll for a group of pipelines that share a feed
// endpoint. It returns one Update per input pipeline; a group-wide failure
// is reported through each Update's Err.
type FeedReader interface {
	Update(ctx context.Context, pipelines []Pipeline) []Update
}

// SecretStore resolves credentials. Implementations must be safe for
// concurrent reads during parallel feed fetches.
type SecretStore interface {
	Password(url string) (string, bool)
	Token(service string) (string, bool)
}

type Notifier interface {
	Notify(ctx context.Context, title, body, url string) error
}

// StatusCache persists a snapshot of all pipelines for external consumers
// (bars, widgets).
type StatusCache interface {
	Write(ctx context.Context, pipelines []Pipeline) error
}
