package redmine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jlucaspains/roadmapboard/internal/models"
)

// MaxPageSize is the largest limit the tracker honours on list endpoints.
const MaxPageSize = 100

// ProjectListOptions filters GET projects.json
type ProjectListOptions struct {
	Limit  int `url:"limit,omitempty"`
	Offset int `url:"offset,omitempty"`
	Status int `url:"status,omitempty"`
}

// IssueListOptions filters GET issues.json and projects/{id}/issues.json
type IssueListOptions struct {
	ProjectID      string   `url:"project_id,omitempty"`
	FixedVersionID int      `url:"fixed_version_id,omitempty"`
	StatusID       string   `url:"status_id,omitempty"`
	Limit          int      `url:"limit,omitempty"`
	Offset         int      `url:"offset,omitempty"`
	Include        []string `url:"include,omitempty,comma"`
}

// ProjectList is the body of GET projects.json
type ProjectList struct {
	Projects   []models.Project `json:"projects"`
	TotalCount int              `json:"total_count"`
	Offset     int              `json:"offset"`
	Limit      int              `json:"limit"`
}

// VersionList is the body of GET projects/{id}/versions.json
type VersionList struct {
	Versions   []models.Version `json:"versions"`
	TotalCount int              `json:"total_count"`
}

// IssueList is the body of the issue list endpoints
type IssueList struct {
	Issues     []models.Issue `json:"issues"`
	TotalCount int            `json:"total_count"`
	Offset     int            `json:"offset"`
	Limit      int            `json:"limit"`
}

type projectEnvelope struct {
	Project *models.Project `json:"project"`
}

// GetProject fetches one project by numeric id or identifier. A 2xx body
// without a project is reported as a 404 so callers see a single not-found shape.
func (c *Client) GetProject(ctx context.Context, project string, include ...string) (*models.Project, error) {
	path := fmt.Sprintf("projects/%s.json", url.PathEscape(project))

	var params url.Values
	if len(include) > 0 {
		params = url.Values{}
		for _, inc := range include {
			params.Add("include", inc)
		}
	}

	var envelope projectEnvelope
	if err := c.Get(ctx, path, params, &envelope); err != nil {
		return nil, err
	}

	if envelope.Project == nil {
		requestURL, _ := c.resolve(path, params)
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Body:       "project missing from response",
			URL:        requestURL,
		}
	}

	return envelope.Project, nil
}

// ListProjects fetches one page of projects
func (c *Client) ListProjects(ctx context.Context, opts ProjectListOptions) (*ProjectList, error) {
	var list ProjectList
	if err := c.Get(ctx, "projects.json", opts, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListVersions fetches every version visible in a project, shared ones included
func (c *Client) ListVersions(ctx context.Context, project string) (*VersionList, error) {
	path := fmt.Sprintf("projects/%s/versions.json", url.PathEscape(project))

	var list VersionList
	if err := c.Get(ctx, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListProjectIssues fetches one page of a project's issues
func (c *Client) ListProjectIssues(ctx context.Context, project string, opts IssueListOptions) (*IssueList, error) {
	path := fmt.Sprintf("projects/%s/issues.json", url.PathEscape(project))

	var list IssueList
	if err := c.Get(ctx, path, opts, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListIssues fetches one page of issues across projects
func (c *Client) ListIssues(ctx context.Context, opts IssueListOptions) (*IssueList, error) {
	var list IssueList
	if err := c.Get(ctx, "issues.json", opts, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Ping verifies connectivity and credentials with the smallest possible list call.
func (c *Client) Ping(ctx context.Context) error {
	c.logger.Info("Testing Redmine connection...")

	if _, err := c.ListProjects(ctx, ProjectListOptions{Limit: 1}); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	c.logger.Info("Redmine connection successful")
	return nil
}
