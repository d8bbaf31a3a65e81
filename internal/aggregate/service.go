package aggregate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/jlucaspains/roadmapboard/internal/config"
	"github.com/jlucaspains/roadmapboard/internal/models"
	"github.com/jlucaspains/roadmapboard/internal/redmine"
)

const (
	defaultIssueLimit   = 50
	defaultProjectLimit = 100
	defaultConcurrency  = 4
)

// DeepIncludes are the issue associations requested by the generic issue query.
var DeepIncludes = []string{"attachments", "changesets", "children", "journals", "relations", "watchers"}

// Tracker is the set of upstream calls the service composes.
type Tracker interface {
	GetProject(ctx context.Context, project string, include ...string) (*models.Project, error)
	ListProjects(ctx context.Context, opts redmine.ProjectListOptions) (*redmine.ProjectList, error)
	ListVersions(ctx context.Context, project string) (*redmine.VersionList, error)
	ListProjectIssues(ctx context.Context, project string, opts redmine.IssueListOptions) (*redmine.IssueList, error)
	ListIssues(ctx context.Context, opts redmine.IssueListOptions) (*redmine.IssueList, error)
}

// Service stitches projects, versions and issues from several tracker
// endpoints into the shapes the dashboard renders.
type Service struct {
	tracker Tracker
	config  *config.DashboardConfig
	logger  *slog.Logger
}

func NewService(tracker Tracker, cfg *config.DashboardConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = &config.DashboardConfig{}
	}
	return &Service{
		tracker: tracker,
		config:  cfg,
		logger:  logger,
	}
}

// ProjectTree is a root project with one level of subprojects.
type ProjectTree struct {
	Root     models.Project   `json:"main_project"`
	Children []models.Project `json:"children"`
	All      []models.Project `json:"projects"`
}

// Failure records one contributor that could not be fetched.
type Failure struct {
	Project    models.ProjectRef `json:"project"`
	VersionID  int               `json:"version_id,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	Error      string            `json:"error"`
}

func newFailure(project models.ProjectRef, versionID int, err error) Failure {
	return Failure{
		Project:    project,
		VersionID:  versionID,
		StatusCode: redmine.StatusCode(err),
		Error:      err.Error(),
	}
}

// VersionSet is the merged version list of several projects.
type VersionSet struct {
	Versions  []models.Version         `json:"versions"`
	ByProject map[int][]models.Version `json:"project_versions"`
	Projects  []models.Project         `json:"projects"`
	Failures  []Failure                `json:"failures"`
}

// Validate checks that every version points at a project in the set.
func (vs *VersionSet) Validate() error {
	known := make(map[int]bool, len(vs.Projects))
	for _, p := range vs.Projects {
		known[p.ID] = true
	}

	for _, v := range vs.Versions {
		if !known[v.Project.ID] {
			return fmt.Errorf("%w: version %d references unknown project %d", ErrInconsistent, v.ID, v.Project.ID)
		}
	}

	for projectID := range vs.ByProject {
		if !known[projectID] {
			return fmt.Errorf("%w: versions grouped under unknown project %d", ErrInconsistent, projectID)
		}
	}

	return nil
}

// Find returns the version with the given id.
func (vs *VersionSet) Find(id int) (models.Version, bool) {
	for _, v := range vs.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return models.Version{}, false
}

// IssuePage is one upstream page of issues. TotalCount is the upstream total
// and may exceed len(Issues).
type IssuePage struct {
	Issues     []models.Issue `json:"issues"`
	TotalCount int            `json:"total_count"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
	VersionID  int            `json:"version_id,omitempty"`
}

// IssueQuery filters the generic issue listing. Zero values mean unset.
type IssueQuery struct {
	ProjectID      string `form:"project_id"`
	FixedVersionID int    `form:"fixed_version_id"`
	Limit          int    `form:"limit"`
	Offset         int    `form:"offset"`
}

// ProjectPage is one page of the active project listing.
type ProjectPage struct {
	Projects   []models.Project `json:"projects"`
	TotalCount int              `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// IssueBatch holds the issues of several versions keyed by version id.
type IssueBatch struct {
	Issues   map[int][]models.Issue `json:"issues"`
	Totals   map[int]int            `json:"totals"`
	Failures []Failure              `json:"failures"`
}

// ProjectTree fetches the root project and its direct subprojects.
func (s *Service) ProjectTree(ctx context.Context, root string) (*ProjectTree, error) {
	s.logger.Debug("Fetching project tree", "project", root)

	project, err := s.tracker.GetProject(ctx, root, "children")
	if err != nil {
		if redmine.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, root)
		}
		return nil, err
	}

	children := project.Children
	if len(children) == 0 {
		children, err = s.discoverChildren(ctx, *project)
		if err != nil {
			s.logger.Warn("Failed to discover subprojects, continuing with root only",
				"project", root, "error", err)
			children = nil
		}
	}
	if children == nil {
		children = []models.Project{}
	}

	rootProject := *project
	rootProject.Children = children

	all := make([]models.Project, 0, len(children)+1)
	all = append(all, rootProject)
	all = append(all, children...)

	s.logger.Info("Loaded project tree", "project", root, "subprojects", len(children))

	return &ProjectTree{
		Root:     rootProject,
		Children: children,
		All:      all,
	}, nil
}

// discoverChildren pages through the project listing and keeps the direct
// children of root. Used when the tracker does not inline children.
func (s *Service) discoverChildren(ctx context.Context, root models.Project) ([]models.Project, error) {
	children := []models.Project{}
	offset := 0

	for {
		page, err := s.tracker.ListProjects(ctx, redmine.ProjectListOptions{
			Limit:  redmine.MaxPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}

		for _, p := range page.Projects {
			if p.Parent != nil && p.Parent.ID == root.ID {
				children = append(children, p)
			}
		}

		offset += len(page.Projects)
		if len(page.Projects) == 0 || offset >= page.TotalCount {
			break
		}
	}

	return children, nil
}

type versionResult struct {
	versions []models.Version
	err      error
	skipped  bool
}

// AllVersions fetches every project's versions concurrently and merges them in
// project order. A project whose fetch fails contributes no versions and is
// recorded in Failures.
func (s *Service) AllVersions(ctx context.Context, projects []models.Project) (*VersionSet, error) {
	results := make([]versionResult, len(projects))

	p := pool.New().WithMaxGoroutines(s.maxConcurrency())
	for i, project := range projects {
		if project.Identifier == "" {
			s.logger.Warn("Skipping project without identifier", "id", project.ID, "name", project.Name)
			results[i].skipped = true
			continue
		}

		p.Go(func() {
			list, err := s.tracker.ListVersions(ctx, project.Identifier)
			if err != nil {
				results[i].err = err
				return
			}
			results[i].versions = list.Versions
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("version aggregation aborted: %w", err)
	}

	set := &VersionSet{
		Versions:  []models.Version{},
		ByProject: make(map[int][]models.Version),
		Projects:  projects,
		Failures:  []Failure{},
	}
	if set.Projects == nil {
		set.Projects = []models.Project{}
	}

	for i, project := range projects {
		result := results[i]
		if result.skipped {
			continue
		}

		if result.err != nil {
			s.logger.Warn("Failed to fetch versions for project",
				"project", project.Identifier,
				"status", redmine.StatusCode(result.err),
				"error", result.err)
			set.Failures = append(set.Failures, newFailure(project.Ref(), 0, result.err))
			continue
		}

		tagged := make([]models.Version, 0, len(result.versions))
		for _, v := range result.versions {
			v.Project = project.Ref()
			tagged = append(tagged, v)
		}
		// shared versions appear once per project that lists them
		set.Versions = append(set.Versions, tagged...)
		set.ByProject[project.ID] = tagged

		s.logger.Debug("Fetched versions", "project", project.Identifier, "count", len(tagged))
	}

	s.logger.Info("Aggregated versions",
		"projects", len(projects),
		"versions", len(set.Versions),
		"failures", len(set.Failures))

	return set, nil
}

// RootVersions loads the project tree under root and all of its versions.
func (s *Service) RootVersions(ctx context.Context, root string) (*ProjectTree, *VersionSet, error) {
	tree, err := s.ProjectTree(ctx, root)
	if err != nil {
		return nil, nil, err
	}

	versions, err := s.AllVersions(ctx, tree.All)
	if err != nil {
		return nil, nil, err
	}

	return tree, versions, nil
}

// ProjectVersions lists the versions of a single project.
func (s *Service) ProjectVersions(ctx context.Context, project string) ([]models.Version, error) {
	list, err := s.tracker.ListVersions(ctx, project)
	if err != nil {
		return nil, err
	}

	if list.Versions == nil {
		return []models.Version{}, nil
	}
	return list.Versions, nil
}

// VersionIssues fetches one page of a version's issues within a project.
func (s *Service) VersionIssues(ctx context.Context, project string, versionID, offset int) (*IssuePage, error) {
	opts := redmine.IssueListOptions{
		FixedVersionID: versionID,
		Limit:          s.issuePageSize(),
		Offset:         max(offset, 0),
	}
	if s.config.IncludeClosed {
		opts.StatusID = "*"
	}

	list, err := s.tracker.ListProjectIssues(ctx, project, opts)
	if err != nil {
		return nil, err
	}

	return &IssuePage{
		Issues:     nonNilIssues(list.Issues),
		TotalCount: list.TotalCount,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
		VersionID:  versionID,
	}, nil
}

// Issues runs the generic issue query with every deep association included.
func (s *Service) Issues(ctx context.Context, q IssueQuery) (*IssuePage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultIssueLimit
	}
	limit = min(limit, redmine.MaxPageSize)

	opts := redmine.IssueListOptions{
		ProjectID:      q.ProjectID,
		FixedVersionID: q.FixedVersionID,
		Limit:          limit,
		Offset:         max(q.Offset, 0),
		Include:        DeepIncludes,
	}

	list, err := s.tracker.ListIssues(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &IssuePage{
		Issues:     nonNilIssues(list.Issues),
		TotalCount: list.TotalCount,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}, nil
}

// Projects lists one page of active projects.
func (s *Service) Projects(ctx context.Context, limit, offset int) (*ProjectPage, error) {
	if limit <= 0 {
		limit = defaultProjectLimit
	}
	limit = min(limit, redmine.MaxPageSize)

	opts := redmine.ProjectListOptions{
		Limit:  limit,
		Offset: max(offset, 0),
		Status: int(models.ProjectActive),
	}

	list, err := s.tracker.ListProjects(ctx, opts)
	if err != nil {
		return nil, err
	}

	projects := list.Projects
	if projects == nil {
		projects = []models.Project{}
	}

	return &ProjectPage{
		Projects:   projects,
		TotalCount: list.TotalCount,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	}, nil
}

// IssuesForVersions loads the first issue page of every version concurrently.
// A failed version is recorded and does not affect the others.
func (s *Service) IssuesForVersions(ctx context.Context, versions []models.Version) (*IssueBatch, error) {
	pages := make([]*IssuePage, len(versions))
	errs := make([]error, len(versions))

	p := pool.New().WithMaxGoroutines(s.maxConcurrency())
	for i, v := range versions {
		p.Go(func() {
			pages[i], errs[i] = s.VersionIssues(ctx, v.Project.Key(), v.ID, 0)
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("issue loading aborted: %w", err)
	}

	batch := &IssueBatch{
		Issues:   make(map[int][]models.Issue, len(versions)),
		Totals:   make(map[int]int, len(versions)),
		Failures: []Failure{},
	}

	for i, v := range versions {
		if errs[i] != nil {
			s.logger.Warn("Failed to fetch issues for version",
				"version", v.ID,
				"project", v.Project.Key(),
				"error", errs[i])
			batch.Failures = append(batch.Failures, newFailure(v.Project, v.ID, errs[i]))
			continue
		}
		batch.Issues[v.ID] = pages[i].Issues
		batch.Totals[v.ID] = pages[i].TotalCount
	}

	return batch, nil
}

func (s *Service) maxConcurrency() int {
	if s.config.MaxConcurrency > 0 {
		return s.config.MaxConcurrency
	}
	return defaultConcurrency
}

func (s *Service) issuePageSize() int {
	size := s.config.IssuePageSize
	if size <= 0 || size > config.MaxIssuePageSize {
		return config.MaxIssuePageSize
	}
	return size
}

func nonNilIssues(issues []models.Issue) []models.Issue {
	if issues == nil {
		return []models.Issue{}
	}
	return issues
}
