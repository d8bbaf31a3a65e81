package models

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the format Redmine uses for calendar dates (due_date, start_date).
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component
type Date struct {
	time.Time
}

// UnmarshalJSON accepts "YYYY-MM-DD", an empty string or null
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MarshalJSON writes the date back in Redmine's layout
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// Ref is the {id, name} pair Redmine embeds for associations
// (status, priority, assignee, tracker, ...)
type Ref struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// IDValue returns the referenced id, or 0 when the association is absent
func (r *Ref) IDValue() int {
	if r == nil {
		return 0
	}
	return r.ID
}

// DisplayName returns the referenced name, or "" when the association is absent
func (r *Ref) DisplayName() string {
	if r == nil {
		return ""
	}
	return r.Name
}

// ProjectRef identifies the project a version or issue belongs to
type ProjectRef struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier,omitempty"`
	Name       string `json:"name"`
}

// Key returns the value used to address the project in tracker URLs.
// The identifier is preferred, the numeric id is the fallback.
func (r ProjectRef) Key() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return strconv.Itoa(r.ID)
}

// ProjectStatus mirrors the integer status codes Redmine returns for projects
type ProjectStatus int

const (
	ProjectActive   ProjectStatus = 1
	ProjectClosed   ProjectStatus = 5
	ProjectArchived ProjectStatus = 9
)

func (s ProjectStatus) String() string {
	switch s {
	case ProjectActive:
		return "active"
	case ProjectClosed:
		return "closed"
	case ProjectArchived:
		return "archived"
	default:
		return "unknown"
	}
}

// Project represents a Redmine project. Children is only populated when the
// project was fetched with its subprojects inlined.
type Project struct {
	ID          int           `json:"id"`
	Identifier  string        `json:"identifier"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status,omitempty"`
	Parent      *ProjectRef   `json:"parent,omitempty"`
	Children    []Project     `json:"children,omitempty"`
	CreatedOn   time.Time     `json:"created_on,omitzero"`
	UpdatedOn   time.Time     `json:"updated_on,omitzero"`
}

// Ref returns the reference used to tag versions owned by this project
func (p Project) Ref() ProjectRef {
	return ProjectRef{ID: p.ID, Identifier: p.Identifier, Name: p.Name}
}

// VersionStatus is the lifecycle state of a version
type VersionStatus string

const (
	VersionOpen   VersionStatus = "open"
	VersionLocked VersionStatus = "locked"
	VersionClosed VersionStatus = "closed"
)

// Version represents a Redmine version (milestone)
type Version struct {
	ID          int           `json:"id"`
	Project     ProjectRef    `json:"project"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      VersionStatus `json:"status"`
	Sharing     string        `json:"sharing,omitempty"`
	DueDate     *Date         `json:"due_date,omitempty"`
	CreatedOn   time.Time     `json:"created_on,omitzero"`
	UpdatedOn   time.Time     `json:"updated_on,omitzero"`
}

// Issue represents a Redmine issue. The trailing collections are only present
// when requested through the include parameter.
type Issue struct {
	ID             int        `json:"id"`
	Project        Ref        `json:"project"`
	Tracker        *Ref       `json:"tracker,omitempty"`
	Status         Ref        `json:"status"`
	Priority       Ref        `json:"priority"`
	Author         *Ref       `json:"author,omitempty"`
	AssignedTo     *Ref       `json:"assigned_to,omitempty"`
	Category       *Ref       `json:"category,omitempty"`
	FixedVersion   *Ref       `json:"fixed_version,omitempty"`
	Parent         *IssueRef  `json:"parent,omitempty"`
	Subject        string     `json:"subject"`
	Description    string     `json:"description,omitempty"`
	StartDate      *Date      `json:"start_date,omitempty"`
	DueDate        *Date      `json:"due_date,omitempty"`
	DoneRatio      int        `json:"done_ratio"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	SpentHours     *float64   `json:"spent_hours,omitempty"`
	CreatedOn      time.Time  `json:"created_on,omitzero"`
	UpdatedOn      time.Time  `json:"updated_on,omitzero"`
	ClosedOn       *time.Time `json:"closed_on,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
	Relations   []Relation   `json:"relations,omitempty"`
	Watchers    []Ref        `json:"watchers,omitempty"`
	Journals    []Journal    `json:"journals,omitempty"`
	Children    []IssueChild `json:"children,omitempty"`
	Changesets  []Changeset  `json:"changesets,omitempty"`
}

// Progress returns done_ratio clamped to [0,100]
func (i Issue) Progress() int {
	return ClampPercent(i.DoneRatio)
}

// ClampPercent clamps a ratio into [0,100]
func ClampPercent(ratio int) int {
	if ratio < 0 {
		return 0
	}
	if ratio > 100 {
		return 100
	}
	return ratio
}

// IssueRef points at another issue by id
type IssueRef struct {
	ID int `json:"id"`
}

// IssueChild is a subtask listed under include=children
type IssueChild struct {
	ID       int          `json:"id"`
	Tracker  *Ref         `json:"tracker,omitempty"`
	Subject  string       `json:"subject"`
	Children []IssueChild `json:"children,omitempty"`
}

// Attachment is a file attached to an issue
type Attachment struct {
	ID          int       `json:"id"`
	Filename    string    `json:"filename"`
	Filesize    int64     `json:"filesize"`
	ContentType string    `json:"content_type,omitempty"`
	Description string    `json:"description,omitempty"`
	ContentURL  string    `json:"content_url,omitempty"`
	Author      *Ref      `json:"author,omitempty"`
	CreatedOn   time.Time `json:"created_on,omitzero"`
}

// Relation links two issues (relates, blocks, precedes, ...)
type Relation struct {
	ID           int    `json:"id"`
	IssueID      int    `json:"issue_id"`
	IssueToID    int    `json:"issue_to_id"`
	RelationType string `json:"relation_type"`
	Delay        *int   `json:"delay,omitempty"`
}

// Journal is one entry of an issue's history
type Journal struct {
	ID           int             `json:"id"`
	User         *Ref            `json:"user,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	PrivateNotes bool            `json:"private_notes,omitempty"`
	CreatedOn    time.Time       `json:"created_on,omitzero"`
	Details      []JournalDetail `json:"details,omitempty"`
}

// JournalDetail records a single attribute change within a journal
type JournalDetail struct {
	Property string `json:"property"`
	Name     string `json:"name"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty"`
}

// Changeset is a repository commit associated with an issue
type Changeset struct {
	Revision    string    `json:"revision"`
	User        *Ref      `json:"user,omitempty"`
	Comments    string    `json:"comments,omitempty"`
	CommittedOn time.Time `json:"committed_on,omitzero"`
}
