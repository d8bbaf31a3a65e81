package board

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"

	"github.com/jlucaspains/roadmapboard/internal/models"
)

// SortOrder is the direction versions are listed in
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ViewState is everything the user can change about what the board shows.
// It round-trips through the URL query so a view can be bookmarked.
//
// Search, filters and the detail flag are always encoded: a parameter that
// is absent keeps the session's value, so switching one of them off must
// be sent explicitly.
type ViewState struct {
	Search    string    `url:"q"`
	VersionID int       `url:"version"`
	ProjectID int       `url:"project"`
	Sort      SortOrder `url:"sort,omitempty"`
	Page      int       `url:"page,omitempty"`
	PageSize  int       `url:"size,omitempty"`
	Detailed  bool      `url:"detail"`
	Lang      string    `url:"lang,omitempty"`
}

// DefaultViewState is the state of a fresh board
func DefaultViewState(pageSize int) ViewState {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return ViewState{
		Sort:     SortAsc,
		Page:     1,
		PageSize: pageSize,
	}
}

// Values encodes the state as URL query parameters
func (s ViewState) Values() url.Values {
	values, err := query.Values(s)
	if err != nil {
		return url.Values{}
	}
	return values
}

// ParseViewState decodes a state from URL query parameters. Missing or
// malformed parameters keep the value from defaults; a present but empty
// search, filter or detail parameter clears it.
func ParseViewState(values url.Values, defaults ViewState) ViewState {
	s := defaults

	if values.Has("q") {
		s.Search = strings.TrimSpace(values.Get("q"))
	}
	s.VersionID = parseFilter(values, "version", s.VersionID)
	s.ProjectID = parseFilter(values, "project", s.ProjectID)
	if n, ok := parseInt(values, "page"); ok {
		s.Page = n
	}
	if n, ok := parseInt(values, "size"); ok && n > 0 && n <= MaxPageSize {
		s.PageSize = n
	}
	switch SortOrder(values.Get("sort")) {
	case SortAsc:
		s.Sort = SortAsc
	case SortDesc:
		s.Sort = SortDesc
	}
	if values.Has("detail") {
		raw := strings.TrimSpace(values.Get("detail"))
		if raw == "" {
			s.Detailed = false
		} else if b, err := strconv.ParseBool(raw); err == nil {
			s.Detailed = b
		}
	}
	if lang := values.Get("lang"); lang != "" {
		s.Lang = lang
	}

	return s.Normalize()
}

// parseFilter reads an id filter. Empty or 0 means "all"; absent or
// malformed keeps current.
func parseFilter(values url.Values, key string, current int) int {
	if !values.Has(key) {
		return current
	}
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return current
	}
	return n
}

func parseInt(values url.Values, key string) (int, bool) {
	raw := values.Get(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Normalize repairs out-of-range fields. The page upper bound depends on the
// data and is applied by GoToPage or Paginate.
func (s ViewState) Normalize() ViewState {
	if s.Sort != SortDesc {
		s.Sort = SortAsc
	}
	if s.Page < 1 {
		s.Page = 1
	}
	if s.PageSize <= 0 || s.PageSize > MaxPageSize {
		s.PageSize = DefaultPageSize
	}
	return s
}

// WithSearch sets the search term, returning to page 1 when it changes
func (s ViewState) WithSearch(term string) ViewState {
	term = strings.TrimSpace(term)
	if term != s.Search {
		s.Search = term
		s.Page = 1
	}
	return s
}

// WithVersionFilter restricts the board to one version id, 0 clears it
func (s ViewState) WithVersionFilter(id int) ViewState {
	if id != s.VersionID {
		s.VersionID = id
		s.Page = 1
	}
	return s
}

// WithProjectFilter restricts the board to one project id, 0 clears it
func (s ViewState) WithProjectFilter(id int) ViewState {
	if id != s.ProjectID {
		s.ProjectID = id
		s.Page = 1
	}
	return s
}

func (s ViewState) ToggleSort() ViewState {
	if s.Sort == SortDesc {
		s.Sort = SortAsc
	} else {
		s.Sort = SortDesc
	}
	return s
}

func (s ViewState) ToggleDetail() ViewState {
	s.Detailed = !s.Detailed
	return s
}

// GoToPage moves to page n clamped into [1, max(1, totalPages)]
func (s ViewState) GoToPage(n, totalPages int) ViewState {
	s.Page = clampPage(n, totalPages)
	return s
}

// Reconcile applies the page reset rule to a state decoded from a request:
// if the search, a filter or the page size differs from prev, the page
// goes back to 1.
func Reconcile(prev, next ViewState) ViewState {
	if next.Search != prev.Search ||
		next.VersionID != prev.VersionID ||
		next.ProjectID != prev.ProjectID ||
		next.PageSize != prev.PageSize {
		next.Page = 1
	}
	return next
}

// FilterVersions keeps the versions matching the state's project filter,
// version filter and search term
func FilterVersions(versions []models.Version, s ViewState) []models.Version {
	term := strings.ToLower(s.Search)
	out := make([]models.Version, 0, len(versions))
	for _, v := range versions {
		if s.VersionID != 0 && v.ID != s.VersionID {
			continue
		}
		if s.ProjectID != 0 && v.Project.ID != s.ProjectID {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(v.Name), term) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// FilterIssues keeps the issues matching the state's project filter,
// version filter and search term (matched against the subject)
func FilterIssues(issues []models.Issue, s ViewState) []models.Issue {
	term := strings.ToLower(s.Search)
	out := make([]models.Issue, 0, len(issues))
	for _, issue := range issues {
		if s.VersionID != 0 && issue.FixedVersion.IDValue() != s.VersionID {
			continue
		}
		if s.ProjectID != 0 && issue.Project.ID != s.ProjectID {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(issue.Subject), term) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// SortVersions returns a stably sorted copy of versions
func SortVersions(versions []models.Version, order SortOrder, cmp *VersionComparator) []models.Version {
	sorted := slices.Clone(versions)
	if sorted == nil {
		sorted = []models.Version{}
	}
	slices.SortStableFunc(sorted, func(a, b models.Version) int {
		r := cmp.Compare(a.Name, b.Name)
		if order == SortDesc {
			return -r
		}
		return r
	})
	return sorted
}

// Page is one slice of a paginated list
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalPages int
	Total      int
}

func (p Page[T]) HasPrev() bool { return p.Page > 1 }
func (p Page[T]) HasNext() bool { return p.Page < p.TotalPages }
func (p Page[T]) PrevPage() int { return max(p.Page-1, 1) }
func (p Page[T]) NextPage() int { return min(p.Page+1, max(p.TotalPages, 1)) }

// Numbers lists every page number for the pager
func (p Page[T]) Numbers() []int {
	numbers := make([]int, 0, p.TotalPages)
	for i := 1; i <= p.TotalPages; i++ {
		numbers = append(numbers, i)
	}
	return numbers
}

// PageCount is ceil(total/size)
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func clampPage(page, totalPages int) int {
	return min(max(page, 1), max(totalPages, 1))
}

// Paginate returns page number page of items, clamping the page into range
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}

	total := len(items)
	totalPages := PageCount(total, size)
	page = clampPage(page, totalPages)

	start := min((page-1)*size, total)
	end := min(start+size, total)

	pageItems := make([]T, end-start)
	copy(pageItems, items[start:end])

	return Page[T]{
		Items:      pageItems,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		Total:      total,
	}
}

// Apply runs the full pipeline: filter, sort, paginate
func Apply(versions []models.Version, s ViewState, cmp *VersionComparator) Page[models.Version] {
	s = s.Normalize()
	filtered := FilterVersions(versions, s)
	sorted := SortVersions(filtered, s.Sort, cmp)
	return Paginate(sorted, s.Page, s.PageSize)
}
