package github_http

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/davarch/pipewatch/internal/domain"
)

type runsDoc struct {
	WorkflowRuns []runDTO `json:"workflow_runs"`
}

type runDTO struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	RunNumber    int64     `json:"run_number"`
	Event        string    `json:"event"`
	DisplayTitle string    `json:"display_title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	HTMLURL      string    `json:"html_url"`
	Actor        struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	} `json:"actor"`
}

// Document is one parsed workflow-run listing, newest run first.
type Document struct {
	runs []runDTO
}

func Parse(raw []byte) (*Document, error) {
	var doc runsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.ParseError{Cause: err}
	}
	return &Document{runs: doc.WorkflowRuns}, nil
}

// StatusFor resolves a pipeline named "<repo>:<workflowFile>": the part
// after the colon selects the workflow whose runs apply. With no colon all
// runs are considered.
func (d *Document) StatusFor(pipelineName string) (domain.Status, bool) {
	_, workflow, _ := strings.Cut(pipelineName, ":")
	runs := d.runsFor(workflow)
	if len(runs) == 0 {
		return domain.Status{}, false
	}

	head := runs[0]
	st := domain.Status{
		Activity: mapActivity(head.Status),
		WebURL:   head.HTMLURL,
	}
	switch st.Activity {
	case domain.ActivityBuilding:
		b := buildFrom(head, false)
		st.CurrentBuild = &b
		for _, r := range runs[1:] {
			if mapActivity(r.Status) == domain.ActivitySleeping {
				last := buildFrom(r, true)
				st.LastBuild = &last
				break
			}
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

func (d *Document) runsFor(workflow string) []runDTO {
	if workflow == "" {
		return d.runs
	}
	var out []runDTO
	for _, r := range d.runs {
		if r.Name == workflow || pathBase(r.Path) == workflow {
			out = append(out, r)
		}
	}
	return out
}

func buildFrom(r runDTO, completed bool) domain.Build {
	b := domain.Build{
		Result:    mapConclusion(r.Conclusion),
		Label:     strconv.FormatInt(r.RunNumber, 10),
		Timestamp: r.CreatedAt,
		Message:   message(r),
		User:      r.Actor.Login,
		Avatar:    r.Actor.AvatarURL,
	}
	// Elapsed time is always derived; the listing carries no duration field
	// worth trusting.
	if completed && r.UpdatedAt.After(r.CreatedAt) {
		b.Duration = r.UpdatedAt.Sub(r.CreatedAt)
	}
	return b
}

func message(r runDTO) string {
	if r.Event == "" {
		return r.DisplayTitle
	}
	return prettify(r.Event) + " ⋮ " + r.DisplayTitle
}

func prettify(event string) string {
	s := strings.ReplaceAll(event, "_", " ")
	runes := []rune(s)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

func pathBase(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func mapActivity(s string) domain.Activity {
	switch s {
	case "in_progress", "queued":
		return domain.ActivityBuilding
	case "completed":
		return domain.ActivitySleeping
	default:
		return domain.ActivityOther
	}
}

func mapConclusion(s string) domain.BuildResult {
	switch s {
	case "success":
		return domain.ResultSuccess
	case "failure":
		return domain.ResultFailure
	default:
		return domain.ResultUnknown
	}
}
