package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"

	"github.com/jlucaspains/roadmapboard/internal/board"
)

// BoardPath is where the dashboard is mounted
const BoardPath = "/board"

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the embedded dashboard template
type Renderer struct {
	tmpl   *template.Template
	links  Links
	logger *slog.Logger
}

func NewRenderer(trackerURL string, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	links, err := NewLinks(trackerURL)
	if err != nil {
		return nil, err
	}

	funcs := template.FuncMap{
		"statusColor":        StatusColor,
		"priorityColor":      PriorityColor,
		"versionStatusColor": VersionStatusColor,
		"progress":           ProgressWidth,
		"description": func(content string) string {
			return PlainDescription(content, logger)
		},
	}

	tmpl, err := template.New("dashboard").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Renderer{
		tmpl:   tmpl,
		links:  links,
		logger: logger,
	}, nil
}

// PageData is what the dashboard template renders
type PageData struct {
	View      board.View
	T         Translator
	Links     Links
	Languages []Lang
}

// NewPageData binds a board snapshot to a language
func (r *Renderer) NewPageData(view board.View, lang Lang) PageData {
	return PageData{
		View:      view,
		T:         NewTranslator(lang),
		Links:     r.links,
		Languages: Languages,
	}
}

// Board renders the dashboard page
func (r *Renderer) Board(data PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "board.html", data); err != nil {
		return nil, fmt.Errorf("failed to render board: %w", err)
	}
	return buf.Bytes(), nil
}

func (p PageData) state() board.ViewState {
	s := p.View.State
	s.Lang = string(p.T.Lang)
	return s
}

// Query is the current view state as an encoded query string
func (p PageData) Query() string {
	return p.state().Values().Encode()
}

func (p PageData) PageHref(n int) string {
	return BoardPath + "?" + p.state().GoToPage(n, p.View.Page.TotalPages).Values().Encode()
}

func (p PageData) SortHref() string {
	return BoardPath + "?" + p.state().ToggleSort().Values().Encode()
}

func (p PageData) DetailHref() string {
	return BoardPath + "?" + p.state().ToggleDetail().Values().Encode()
}

func (p PageData) LangHref(lang Lang) string {
	s := p.state()
	s.Lang = string(lang)
	return BoardPath + "?" + s.Values().Encode()
}

func (p PageData) IsDesc() bool {
	return p.View.State.Sort == board.SortDesc
}

// ToggleAction is the form target that expands or collapses a version
func (p PageData) ToggleAction(versionID int) string {
	return BoardPath + "/versions/" + strconv.Itoa(versionID) + "/toggle?" + p.Query()
}

// ExpandAction is the form target that retries a failed issue load
func (p PageData) ExpandAction(versionID int) string {
	return BoardPath + "/versions/" + strconv.Itoa(versionID) + "/expand?" + p.Query()
}

func (p PageData) ReloadAction() string {
	return BoardPath + "/reload?" + p.Query()
}
