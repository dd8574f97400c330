package jobs

import (
	"strings"
	"time"

	"github.com/teranos/jobtrail/errors"
)

// Unknown is stored for a required field the extraction could not determine
const Unknown = "unknown"

// SourceType is where a record's text came from
type SourceType string

const (
	SourceURL  SourceType = "url"
	SourcePDF  SourceType = "pdf"
	SourceText SourceType = "text"
)

// Valid reports whether t is one of the known source types
func (t SourceType) Valid() bool {
	switch t {
	case SourceURL, SourcePDF, SourceText:
		return true
	}
	return false
}

// Note is a timestamped remark attached to a record
type Note struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Record is one tracked job application
type Record struct {
	ID           string     `json:"id"`
	SourceType   SourceType `json:"source_type"`
	SourceKey    string     `json:"source_key"`
	Source       string     `json:"source"`
	Title        string     `json:"title"`
	Company      string     `json:"company"`
	Description  string     `json:"description"`
	Salary       string     `json:"salary"`
	Location     string     `json:"location,omitempty"`
	JobType      string     `json:"job_type,omitempty"`
	Requirements string     `json:"requirements,omitempty"`
	Status       Status     `json:"status"`
	Notes        []Note     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ShortID returns the first eight characters of the id
func (r *Record) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// NewRecord carries the extracted content for Store.Add
type NewRecord struct {
	SourceType   SourceType
	SourceKey    string
	Source       string
	Title        string
	Company      string
	Description  string
	Salary       string
	Location     string
	JobType      string
	Requirements string
}

// validate checks the dedup identity and fills empty required fields with Unknown
func (n *NewRecord) validate() error {
	if !n.SourceType.Valid() {
		return errors.NewValidationError("invalid source type %q", n.SourceType)
	}
	if strings.TrimSpace(n.SourceKey) == "" {
		return errors.NewValidationError("source key is required")
	}
	for _, f := range []*string{&n.Title, &n.Company, &n.Description, &n.Salary} {
		if strings.TrimSpace(*f) == "" {
			*f = Unknown
		}
	}
	return nil
}

// applyContent copies extracted content onto r. A field the new extraction
// could not determine keeps its previous value.
func (r *Record) applyContent(n NewRecord) {
	keep := func(dst *string, v string, required bool) {
		v = strings.TrimSpace(v)
		if v == "" || (required && v == Unknown) {
			if *dst != "" {
				return
			}
		}
		*dst = v
	}
	keep(&r.Title, n.Title, true)
	keep(&r.Company, n.Company, true)
	keep(&r.Description, n.Description, true)
	keep(&r.Salary, n.Salary, true)
	keep(&r.Location, n.Location, false)
	keep(&r.JobType, n.JobType, false)
	keep(&r.Requirements, n.Requirements, false)
	if n.Source != "" {
		r.Source = n.Source
	}
}
