package gitlab_http

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/davarch/pipewatch/internal/domain"
)

type pipelineDTO struct {
	ID        int64     `json:"id"`
	IID       int64     `json:"iid"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	SHA       string    `json:"sha"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	WebURL    string    `json:"web_url"`
}

type detailDTO struct {
	Duration float64 `json:"duration"`
	User     struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user"`
}

// Document is one parsed pipeline listing, newest pipeline first.
type Document struct {
	records []pipelineDTO
}

func Parse(raw []byte) (*Document, error) {
	var records []pipelineDTO
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &domain.ParseError{Cause: err}
	}
	return &Document{records: records}, nil
}

// Status derives the pipeline status from the listing. When the newest
// record is still running, the most recent successful record (or, failing
// that, the most recent completed one) supplies the last build.
func (d *Document) Status() (domain.Status, bool) {
	if len(d.records) == 0 {
		return domain.Status{}, false
	}

	head := d.records[0]
	st := domain.Status{
		Activity: mapActivity(head.Status),
		WebURL:   head.WebURL,
	}
	switch st.Activity {
	case domain.ActivityBuilding:
		b := buildFrom(head, false)
		st.CurrentBuild = &b
		if last, ok := lastCompleted(d.records[1:]); ok {
			st.LastBuild = &last
		}
	case domain.ActivitySleeping:
		b := buildFrom(head, true)
		st.LastBuild = &b
	default:
		b := buildFrom(head, false)
		st.LastBuild = &b
	}
	return st, true
}

func lastCompleted(records []pipelineDTO) (domain.Build, bool) {
	for _, r := range records {
		if r.Status == "success" {
			return buildFrom(r, true), true
		}
	}
	for _, r := range records {
		if mapActivity(r.Status) == domain.ActivitySleeping {
			return buildFrom(r, true), true
		}
	}
	return domain.Build{}, false
}

func buildFrom(r pipelineDTO, completed bool) domain.Build {
	b := domain.Build{
		Result:    mapResult(r.Status),
		ID:        strconv.FormatInt(r.ID, 10),
		Label:     strconv.FormatInt(r.IID, 10),
		Timestamp: r.CreatedAt,
		Message:   message(r),
	}
	if completed && r.UpdatedAt.After(r.CreatedAt) {
		b.Duration = r.UpdatedAt.Sub(r.CreatedAt)
	}
	return b
}

func message(r pipelineDTO) string {
	sha := r.SHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	commit := "Commit " + sha
	if r.Source == "" {
		return commit
	}
	return prettify(r.Source) + " ⋮ " + commit
}

func prettify(source string) string {
	s := strings.ReplaceAll(source, "_", " ")
	runes := []rune(s)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

func mapActivity(s string) domain.Activity {
	switch s {
	case "running", "pending":
		return domain.ActivityBuilding
	case "success", "failed", "canceled", "skipped", "manual", "scheduled":
		return domain.ActivitySleeping
	default:
		return domain.ActivityOther
	}
}

func mapResult(s string) domain.BuildResult {
	switch s {
	case "success":
		return domain.ResultSuccess
	case "failed":
		return domain.ResultFailure
	case "canceled", "skipped", "manual", "scheduled":
		return domain.ResultOther
	default:
		return domain.ResultUnknown
	}
}
