package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jlucaspains/roadmapboard/internal/aggregate"
	"github.com/jlucaspains/roadmapboard/internal/config"
	"github.com/jlucaspains/roadmapboard/internal/models"
)

var ErrUnknownVersion = errors.New("unknown version")

// LoadState is the issue-loading lifecycle of one version
type LoadState int

const (
	StateIdle LoadState = iota
	StatePending
	StateLoaded
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Source is the aggregation the board reads from
type Source interface {
	RootVersions(ctx context.Context, root string) (*aggregate.ProjectTree, *aggregate.VersionSet, error)
	VersionIssues(ctx context.Context, project string, versionID, offset int) (*aggregate.IssuePage, error)
	IssuesForVersions(ctx context.Context, versions []models.Version) (*aggregate.IssueBatch, error)
}

// Board is one viewer's roadmap: the loaded versions, the issues fetched so
// far, which versions are expanded and the current view state.
//
// The mutex is never held across an upstream call. A version in StatePending
// already has a fetch in flight and further requests for it are ignored.
type Board struct {
	source Source
	config *config.DashboardConfig
	cmp    *VersionComparator
	logger *slog.Logger

	mu         sync.Mutex
	generation int
	loaded     bool
	loadErr    error
	tree       *aggregate.ProjectTree
	versions   *aggregate.VersionSet
	issues     map[int][]models.Issue
	totals     map[int]int
	expanded   map[int]bool
	states     map[int]LoadState
	failures   map[int]string
	view       ViewState
}

func NewBoard(source Source, cfg *config.DashboardConfig, cmp *VersionComparator, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	if cmp == nil {
		cmp = NewVersionComparator(cfg.Locale)
	}
	b := &Board{
		source: source,
		config: cfg,
		cmp:    cmp,
		logger: logger,
		view:   DefaultViewState(cfg.PageSize),
	}
	b.resetCaches()
	return b
}

func (b *Board) resetCaches() {
	b.issues = make(map[int][]models.Issue)
	b.totals = make(map[int]int)
	b.expanded = make(map[int]bool)
	b.states = make(map[int]LoadState)
	b.failures = make(map[int]string)
}

// EnsureLoaded loads the board on first use
func (b *Board) EnsureLoaded(ctx context.Context) error {
	b.mu.Lock()
	loaded := b.loaded
	b.mu.Unlock()

	if loaded {
		return nil
	}
	return b.Load(ctx)
}

// Load fetches the root project tree and all of its versions, dropping any
// cached issues. On failure the previously loaded data stays in place and
// the error is reported by Snapshot.
func (b *Board) Load(ctx context.Context) error {
	b.mu.Lock()
	b.generation++
	gen := b.generation
	b.mu.Unlock()

	b.logger.Info("Loading board", "project", b.config.RootProject, "loading", b.config.IssueLoading)

	tree, set, err := b.source.RootVersions(ctx, b.config.RootProject)
	if err == nil {
		err = set.Validate()
	}

	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		b.logger.Debug("Discarding superseded board load", "generation", gen)
		return nil
	}

	if err != nil {
		b.loadErr = err
		// fetches started before this load are now discarded on return
		for id, state := range b.states {
			if state == StatePending {
				b.states[id] = StateIdle
			}
		}
		b.mu.Unlock()
		b.logger.Error("Failed to load board", "project", b.config.RootProject, "error", err)
		return fmt.Errorf("failed to load board: %w", err)
	}

	b.tree = tree
	b.versions = set
	b.loaded = true
	b.loadErr = nil
	b.resetCaches()

	var pending []models.Version
	if b.config.IssueLoading == config.LoadingEager {
		for _, v := range set.Versions {
			if b.states[v.ID] == StatePending {
				continue
			}
			b.states[v.ID] = StatePending
			pending = append(pending, v)
		}
	}
	b.mu.Unlock()

	b.logger.Info("Board loaded", "versions", len(set.Versions), "failures", len(set.Failures))

	if len(pending) > 0 {
		return b.loadAll(ctx, gen, pending)
	}
	return nil
}

// Reload discards everything and loads again, bypassing any shared cache
func (b *Board) Reload(ctx context.Context) error {
	if inv, ok := b.source.(invalidator); ok {
		inv.Invalidate(b.config.RootProject)
	}
	return b.Load(ctx)
}

func (b *Board) loadAll(ctx context.Context, gen int, versions []models.Version) error {
	batch, err := b.source.IssuesForVersions(ctx, versions)

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return nil
	}

	if err != nil {
		for _, v := range versions {
			b.states[v.ID] = StateFailed
			b.failures[v.ID] = err.Error()
		}
		return fmt.Errorf("failed to load issues: %w", err)
	}

	failed := make(map[int]string, len(batch.Failures))
	for _, f := range batch.Failures {
		failed[f.VersionID] = f.Error
	}

	for _, v := range versions {
		if issues, ok := batch.Issues[v.ID]; ok {
			b.issues[v.ID] = issues
			b.totals[v.ID] = batch.Totals[v.ID]
			b.states[v.ID] = StateLoaded
			continue
		}
		b.states[v.ID] = StateFailed
		b.failures[v.ID] = failed[v.ID]
	}

	return nil
}

// Toggle flips a version between expanded and collapsed
func (b *Board) Toggle(ctx context.Context, versionID int) error {
	b.mu.Lock()
	expanded := b.expanded[versionID]
	b.mu.Unlock()

	if expanded {
		return b.Collapse(versionID)
	}
	return b.Expand(ctx, versionID)
}

// Expand marks a version expanded and fetches its issues if they were never
// loaded or the last attempt failed. Once loaded, issues are served from
// memory for the lifetime of the board.
func (b *Board) Expand(ctx context.Context, versionID int) error {
	b.mu.Lock()
	version, ok := b.findVersion(versionID)
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownVersion, versionID)
	}

	b.expanded[versionID] = true

	switch b.states[versionID] {
	case StatePending, StateLoaded:
		b.mu.Unlock()
		return nil
	}

	b.states[versionID] = StatePending
	delete(b.failures, versionID)
	gen := b.generation
	b.mu.Unlock()

	return b.fetchIssues(ctx, gen, version)
}

// Collapse hides a version's issues without discarding them
func (b *Board) Collapse(versionID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.findVersion(versionID); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, versionID)
	}
	b.expanded[versionID] = false
	return nil
}

func (b *Board) fetchIssues(ctx context.Context, gen int, version models.Version) error {
	b.logger.Debug("Fetching version issues", "version", version.ID, "project", version.Project.Key())

	page, err := b.source.VersionIssues(ctx, version.Project.Key(), version.ID, 0)

	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.generation {
		return nil
	}

	if err != nil {
		b.states[version.ID] = StateFailed
		b.failures[version.ID] = err.Error()
		b.logger.Warn("Failed to fetch version issues", "version", version.ID, "error", err)
		return fmt.Errorf("failed to load issues for version %d: %w", version.ID, err)
	}

	b.issues[version.ID] = page.Issues
	b.totals[version.ID] = page.TotalCount
	b.states[version.ID] = StateLoaded
	return nil
}

// findVersion must be called with b.mu held
func (b *Board) findVersion(id int) (models.Version, bool) {
	if b.versions == nil {
		return models.Version{}, false
	}
	return b.versions.Find(id)
}

// LoadState reports the issue-loading state of a version
func (b *Board) LoadState(versionID int) LoadState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[versionID]
}

// ViewState returns the current view state
func (b *Board) ViewState() ViewState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// SetViewState stores next, resetting the page when the search, a filter or
// the page size changed. It returns the stored state.
func (b *Board) SetViewState(next ViewState) ViewState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.view = Reconcile(b.view, next.Normalize())
	return b.view
}

// VersionRow is one version as rendered on the board
type VersionRow struct {
	Version    models.Version
	Expanded   bool
	State      LoadState
	Issues     []models.Issue
	IssueTotal int
	Error      string
}

// Stats summarises the board for the header
type Stats struct {
	TotalVersions int
	Filtered      int
	Shown         int
	LoadedIssues  int
}

// View is an immutable snapshot of the board for rendering
type View struct {
	State       ViewState
	Loaded      bool
	Error       string
	Root        models.Project
	Projects    []models.Project
	AllVersions []models.Version
	Page        Page[VersionRow]
	Failures    []aggregate.Failure
	Stats       Stats
}

// Snapshot computes the displayed subset under the current view state. The
// stored page is clamped into range as a side effect.
func (b *Board) Snapshot() View {
	b.mu.Lock()
	defer b.mu.Unlock()

	view := View{
		Loaded:      b.loaded,
		Projects:    []models.Project{},
		AllVersions: []models.Version{},
		Failures:    []aggregate.Failure{},
	}
	if b.loadErr != nil {
		view.Error = b.loadErr.Error()
	}
	if b.tree != nil {
		view.Root = b.tree.Root
		view.Projects = b.tree.All
	}

	var versions []models.Version
	if b.versions != nil {
		versions = b.versions.Versions
		view.Failures = b.versions.Failures
		view.AllVersions = SortVersions(versions, SortAsc, b.cmp)
	}

	page := Apply(versions, b.view, b.cmp)
	b.view.Page = page.Page
	view.State = b.view

	rows := make([]VersionRow, 0, len(page.Items))
	for _, v := range page.Items {
		rows = append(rows, VersionRow{
			Version:    v,
			Expanded:   b.expanded[v.ID],
			State:      b.states[v.ID],
			Issues:     b.issues[v.ID],
			IssueTotal: b.totals[v.ID],
			Error:      b.failures[v.ID],
		})
	}

	view.Page = Page[VersionRow]{
		Items:      rows,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		Total:      page.Total,
	}

	loadedIssues := 0
	for _, issues := range b.issues {
		loadedIssues += len(issues)
	}

	view.Stats = Stats{
		TotalVersions: len(versions),
		Filtered:      page.Total,
		Shown:         len(rows),
		LoadedIssues:  loadedIssues,
	}

	return view
}

// Pending reports whether an issue fetch is in flight for the row
func (r VersionRow) Pending() bool { return r.State == StatePending }

// Failed reports whether the last issue fetch for the row failed
func (r VersionRow) Failed() bool { return r.State == StateFailed }
