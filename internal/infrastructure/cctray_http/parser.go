package cctray_http

import (
	"encoding/xml"
	"time"

	"github.com/davarch/pipewatch/internal/domain"
)

type projectsXML struct {
	XMLName  xml.Name     `xml:"Projects"`
	Projects []projectXML `xml:"Project"`
}

type projectXML struct {
	Name            string `xml:"name,attr"`
	Activity        string `xml:"activity,attr"`
	LastBuildStatus string `xml:"lastBuildStatus,attr"`
	LastBuildLabel  string `xml:"lastBuildLabel,attr"`
	LastBuildTime   string `xml:"lastBuildTime,attr"`
	WebURL          string `xml:"webUrl,attr"`
}

// Document is one parsed cctray status feed, indexed by project name.
type Document struct {
	order    []string
	projects map[string]projectXML
}

func Parse(raw []byte) (*Document, error) {
	var doc projectsXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.ParseError{Cause: err}
	}
	d := &Document{projects: make(map[string]projectXML, len(doc.Projects))}
	for _, p := range doc.Projects {
		if _, seen := d.projects[p.Name]; !seen {
			d.order = append(d.order, p.Name)
		}
		d.projects[p.Name] = p
	}
	return d, nil
}

// ProjectNames lists the server's projects in document order.
func (d *Document) ProjectNames() []string {
	return append([]string(nil), d.order...)
}

// StatusFor looks up one project by its server-side name. A missing project
// is a legitimate "no status" outcome, not a parse error.
func (d *Document) StatusFor(project string) (domain.Status, bool) {
	p, ok := d.projects[project]
	if !ok {
		return domain.Status{}, false
	}

	st := domain.Status{
		Activity: mapActivity(p.Activity),
		WebURL:   p.WebURL,
	}
	st.LastBuild = &domain.Build{
		Result:    mapResult(p.LastBuildStatus),
		Label:     p.LastBuildLabel,
		Timestamp: parseBuildTime(p.LastBuildTime),
	}
	if st.Activity == domain.ActivityBuilding {
		// The protocol reports nothing about the build in progress; the
		// merge step stamps its start time.
		st.CurrentBuild = &domain.Build{Result: domain.ResultUnknown}
	}
	return st, true
}

func mapActivity(s string) domain.Activity {
	switch s {
	case "Sleeping":
		return domain.ActivitySleeping
	case "Building":
		return domain.ActivityBuilding
	default:
		return domain.ActivityOther
	}
}

func mapResult(s string) domain.BuildResult {
	switch s {
	case "Success":
		return domain.ResultSuccess
	case "Failure", "Exception":
		return domain.ResultFailure
	default:
		return domain.ResultUnknown
	}
}

// Feeds in the wild use either a bare local timestamp or ISO-8601 with an
// optional zone offset and optional fractional seconds.
var buildTimeFormats = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
}

func parseBuildTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, f := range buildTimeFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
