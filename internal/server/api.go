package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jlucaspains/roadmapboard/internal/aggregate"
	"github.com/jlucaspains/roadmapboard/internal/redmine"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	URL     string `json:"url,omitempty"`
}

var errBadRequest = errors.New("bad request")

// fail maps err onto the response. Upstream errors keep their status.
func (s *Server) fail(c *gin.Context, err error) {
	var apiErr *redmine.APIError

	switch {
	case errors.Is(err, errBadRequest):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		s.logger.Error("Tracker request failed",
			"status", apiErr.StatusCode,
			"url", apiErr.URL,
			"request_id", c.GetString(requestIDKey))
		c.JSON(status, errorResponse{
			Error:   apiErr.Error(),
			Details: apiErr.Body,
			URL:     apiErr.URL,
		})
	case errors.Is(err, aggregate.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "Main project not found"})
	default:
		s.logger.Error("Request failed", "error", err, "request_id", c.GetString(requestIDKey))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

// intParam parses an optional integer; empty yields 0
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return n, nil
}

func (s *Server) listProjects(c *gin.Context) {
	limit, err := intParam(c.Query("limit"), "limit")
	if err != nil {
		s.fail(c, err)
		return
	}
	offset, err := intParam(c.Query("offset"), "offset")
	if err != nil {
		s.fail(c, err)
		return
	}

	page, err := s.service.Projects(c.Request.Context(), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) subprojects(c *gin.Context) {
	tree, err := s.service.ProjectTree(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects":     tree.All,
		"total_count":  len(tree.All),
		"main_project": tree.Root,
	})
}

func (s *Server) allVersions(c *gin.Context) {
	_, set, err := s.service.RootVersions(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"versions":         set.Versions,
		"total_count":      len(set.Versions),
		"projects":         set.Projects,
		"project_versions": set.ByProject,
		"failures":         set.Failures,
	})
}

func (s *Server) roadmap(c *gin.Context) {
	versions, err := s.service.ProjectVersions(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"versions":    versions,
		"total_count": len(versions),
	})
}

func (s *Server) versionIssues(c *gin.Context) {
	versionID, err := strconv.Atoi(c.Param("versionId"))
	if err != nil || versionID <= 0 {
		s.fail(c, fmt.Errorf("%w: versionId must be a positive integer", errBadRequest))
		return
	}
	offset, err := intParam(c.Query("offset"), "offset")
	if err != nil {
		s.fail(c, err)
		return
	}

	page, err := s.service.VersionIssues(c.Request.Context(), c.Param("identifier"), versionID, offset)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) listIssues(c *gin.Context) {
	var q aggregate.IssueQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, fmt.Errorf("%w: invalid issue query", errBadRequest))
		return
	}

	page, err := s.service.Issues(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
