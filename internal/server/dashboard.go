package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jlucaspains/roadmapboard/internal/board"
	"github.com/jlucaspains/roadmapboard/internal/render"
)

const (
	SessionCookie = "roadmap_session"
	LangCookie    = "roadmap_lang"
)

// session resolves the caller's board. The cookie is reissued on every
// request so it expires together with the idle session.
func (s *Server) session(c *gin.Context) *board.Board {
	current, _ := c.Cookie(SessionCookie)
	id, b := s.boards.Get(current)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, int(s.config.Dashboard.SessionTTL.Seconds()), "/", "", false, true)
	return b
}

// applyQuery merges the view state carried in the request query into b
func applyQuery(c *gin.Context, b *board.Board) board.ViewState {
	return b.SetViewState(board.ParseViewState(c.Request.URL.Query(), b.ViewState()))
}

func (s *Server) lang(c *gin.Context, state board.ViewState) render.Lang {
	cookie, _ := c.Cookie(LangCookie)
	fallback := render.MatchLang(render.Korean, s.config.Dashboard.Locale)
	lang := render.MatchLang(fallback, state.Lang, cookie, c.GetHeader("Accept-Language"))

	if state.Lang != "" && string(lang) != cookie {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(LangCookie, string(lang), 365*24*60*60, "/", "", false, true)
	}
	return lang
}

func (s *Server) showBoard(c *gin.Context) {
	b := s.session(c)
	state := applyQuery(c, b)
	lang := s.lang(c, state)

	if err := b.EnsureLoaded(c.Request.Context()); err != nil {
		s.logger.Warn("Rendering board without fresh data", "error", err, "request_id", c.GetString(requestIDKey))
	}

	body, err := s.renderer.Board(s.renderer.NewPageData(b.Snapshot(), lang))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

func (s *Server) reloadBoard(c *gin.Context) {
	b := s.session(c)
	applyQuery(c, b)

	if err := b.Reload(c.Request.Context()); err != nil {
		s.logger.Warn("Board reload failed", "error", err, "request_id", c.GetString(requestIDKey))
	}

	s.redirectToBoard(c, "")
}

func (s *Server) toggleVersion(c *gin.Context) {
	s.versionAction(c, (*board.Board).Toggle)
}

// expandVersion never collapses, so it doubles as the retry action
func (s *Server) expandVersion(c *gin.Context) {
	s.versionAction(c, (*board.Board).Expand)
}

func (s *Server) versionAction(c *gin.Context, action func(*board.Board, context.Context, int) error) {
	versionID, err := strconv.Atoi(c.Param("id"))
	if err != nil || versionID <= 0 {
		c.String(http.StatusBadRequest, "invalid version id")
		return
	}

	b := s.session(c)
	applyQuery(c, b)

	if err := b.EnsureLoaded(c.Request.Context()); err != nil {
		s.logger.Warn("Board is not loaded", "error", err, "request_id", c.GetString(requestIDKey))
		s.redirectToBoard(c, "")
		return
	}

	if err := action(b, c.Request.Context(), versionID); err != nil {
		if errors.Is(err, board.ErrUnknownVersion) {
			c.String(http.StatusNotFound, "unknown version %d", versionID)
			return
		}
		// the failure is kept on the version row and rendered with a retry
		s.logger.Warn("Version action failed", "version", versionID, "error", err)
	}

	s.redirectToBoard(c, "v"+strconv.Itoa(versionID))
}

// redirectToBoard sends the browser back to the dashboard with the view
// state it posted from
func (s *Server) redirectToBoard(c *gin.Context, fragment string) {
	target := render.BoardPath
	if raw := c.Request.URL.RawQuery; raw != "" {
		target += "?" + raw
	}
	if fragment != "" {
		target += "#" + fragment
	}
	c.Redirect(http.StatusSeeOther, target)
}
