package render

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jlucaspains/roadmapboard/internal/models"
)

// Links builds deep links into the tracker's own web UI
type Links struct {
	base *url.URL
}

func NewLinks(baseURL string) (Links, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return Links{}, fmt.Errorf("invalid tracker URL %q", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return Links{base: base}, nil
}

// Roadmap links to a project's roadmap page
func (l Links) Roadmap(project models.ProjectRef) string {
	return l.resolve("projects/" + url.PathEscape(project.Key()) + "/roadmap")
}

// Issue links to an issue page
func (l Links) Issue(id int) string {
	return l.resolve("issues/" + strconv.Itoa(id))
}

func (l Links) resolve(path string) string {
	if l.base == nil {
		return "/" + path
	}
	return l.base.ResolveReference(&url.URL{Path: path}).String()
}
