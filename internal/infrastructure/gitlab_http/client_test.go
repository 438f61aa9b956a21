package gitlab_http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davarch/pipewatch/internal/domain"
)

func gitlabPipeline(url string) domain.Pipeline {
	return domain.Pipeline{
		Name: "acme/widgets",
		Feed: domain.Feed{Type: domain.FeedTypeGitLab, URL: url},
	}
}

func TestUpdate_EnrichesBuildsFromDetailEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/1/pipelines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "glpat-test", r.Header.Get("PRIVATE-TOKEN"))
		_, _ = w.Write([]byte(pipelinesJSON))
	})
	mux.HandleFunc("/api/v4/projects/1/pipelines/1001", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"duration": 0, "user": {"name": "Dev One", "avatar_url": "https://a/1"}}`))
	})
	mux.HandleFunc("/api/v4/projects/1/pipelines/999", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"duration": 272.5, "user": {"name": "Dev Two", "avatar_url": "https://a/2"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	secrets := &domain.MockSecrets{Tokens: map[string]string{TokenService: "glpat-test"}}
	c := New(secrets, time.Second)

	updates := c.Update(context.Background(), []domain.Pipeline{
		gitlabPipeline(srv.URL + "/api/v4/projects/1/pipelines"),
	})

	require.Len(t, updates, 1)
	require.NoError(t, updates[0].Err)
	st := updates[0].Status

	require.NotNil(t, st.CurrentBuild)
	assert.Equal(t, "Dev One", st.CurrentBuild.User)
	assert.Equal(t, "https://a/1", st.CurrentBuild.Avatar)

	require.NotNil(t, st.LastBuild)
	assert.Equal(t, "Dev Two", st.LastBuild.User)
	// The listing already derived a duration; the detail value must not
	// clobber it.
	assert.Equal(t, 5*time.Minute, st.LastBuild.Duration)
}

func TestUpdate_FailedEnrichmentKeepsUnenrichedBuild(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pipelines", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pipelinesJSON))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(&domain.MockSecrets{}, time.Second)
	updates := c.Update(context.Background(), []domain.Pipeline{
		gitlabPipeline(srv.URL + "/pipelines"),
	})

	require.Len(t, updates, 1)
	require.NoError(t, updates[0].Err, "enrichment failure must not discard the update")
	require.NotNil(t, updates[0].Status.CurrentBuild)
	assert.Empty(t, updates[0].Status.CurrentBuild.User)
}

func TestUpdate_RateLimitHeadersBecomePause(t *testing.T) {
	reset := time.Now().Add(5 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("RateLimit-Remaining", "0")
		w.Header().Set("RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(&domain.MockSecrets{}, time.Second)
	updates := c.Update(context.Background(), []domain.Pipeline{gitlabPipeline(srv.URL)})

	require.Len(t, updates, 1)
	assert.NoError(t, updates[0].Err)
	assert.Equal(t, time.Unix(reset, 0), updates[0].PauseUntil)
}

func TestUpdate_TooManyRequestsWithBudgetLeftIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("RateLimit-Remaining", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(&domain.MockSecrets{}, time.Second)
	updates := c.Update(context.Background(), []domain.Pipeline{gitlabPipeline(srv.URL)})

	require.Len(t, updates, 1)
	var httpErr *domain.HTTPError
	assert.ErrorAs(t, updates[0].Err, &httpErr)
}

func TestDetailURLFor(t *testing.T) {
	got, err := detailURLFor("https://gitlab.example.com/api/v4/projects/1/pipelines?per_page=20", "999")
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.example.com/api/v4/projects/1/pipelines/999", got)
}
