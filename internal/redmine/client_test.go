package redmine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlucaspains/roadmapboard/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&config.TrackerConfig{
		BaseURL: srv.URL + "/redmine",
		APIKey:  "test-key",
	}, testLogger())
	require.NoError(t, err)
	return client, srv
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.TrackerConfig
		errorMsg string
	}{
		{
			name:     "missing base URL",
			cfg:      config.TrackerConfig{APIKey: "k"},
			errorMsg: "tracker base URL is required",
		},
		{
			name:     "missing API key",
			cfg:      config.TrackerConfig{BaseURL: "https://redmine.example.com"},
			errorMsg: "tracker API key is required",
		},
		{
			name:     "relative base URL",
			cfg:      config.TrackerConfig{BaseURL: "redmine.example.com", APIKey: "k"},
			errorMsg: "must be an absolute http(s) URL",
		},
		{
			name:     "unknown auth scheme",
			cfg:      config.TrackerConfig{BaseURL: "https://redmine.example.com", APIKey: "k", AuthScheme: "digest"},
			errorMsg: "unsupported auth scheme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(&tt.cfg, testLogger())
			require.Error(t, err)
			assert.Nil(t, client)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}

	t.Run("normalises trailing slash", func(t *testing.T) {
		client, err := NewClient(&config.TrackerConfig{
			BaseURL: "https://redmine.example.com/tracker",
			APIKey:  "k",
			Timeout: time.Second,
		}, testLogger())
		require.NoError(t, err)
		assert.Equal(t, "https://redmine.example.com/tracker/", client.BaseURL())
	})
}

func TestClient_Get(t *testing.T) {
	t.Run("sends api key header and decodes body", func(t *testing.T) {
		var gotKey, gotAuth, gotPath string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get(APIKeyHeader)
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			fmt.Fprint(w, `{"versions":[{"id":1,"name":"v1.0.0","status":"open"}],"total_count":1}`)
		})

		list, err := client.ListVersions(context.Background(), "sub-a")
		require.NoError(t, err)

		assert.Equal(t, "test-key", gotKey)
		assert.Empty(t, gotAuth)
		assert.Equal(t, "/redmine/projects/sub-a/versions.json", gotPath)
		require.Len(t, list.Versions, 1)
		assert.Equal(t, "v1.0.0", list.Versions[0].Name)
	})

	t.Run("non-2xx becomes APIError with body and url", func(t *testing.T) {
		client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "forbidden project")
		})

		_, err := client.ListVersions(context.Background(), "secret")
		require.Error(t, err)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "forbidden project", apiErr.Body)
		assert.Equal(t, srv.URL+"/redmine/projects/secret/versions.json", apiErr.URL)
		assert.Equal(t, "Redmine API Error: 403", apiErr.Error())
		assert.Equal(t, http.StatusForbidden, StatusCode(err))
		assert.False(t, IsNotFound(err))
	})

	t.Run("invalid json is a decode error", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>login</html>")
		})

		_, err := client.ListProjects(context.Background(), ProjectListOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode response")
		assert.Equal(t, 0, StatusCode(err))
	})

	t.Run("bearer scheme sends oauth2 token instead of header", func(t *testing.T) {
		var gotKey, gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get(APIKeyHeader)
			gotAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{"projects":[],"total_count":0}`)
		}))
		t.Cleanup(srv.Close)

		client, err := NewClient(&config.TrackerConfig{
			BaseURL:    srv.URL,
			APIKey:     "token-123",
			AuthScheme: config.AuthSchemeBearer,
		}, testLogger())
		require.NoError(t, err)

		require.NoError(t, client.Ping(context.Background()))
		assert.Empty(t, gotKey)
		assert.Equal(t, "Bearer token-123", gotAuth)
	})
}

func TestClient_QueryEncoding(t *testing.T) {
	var gotQuery map[string][]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"issues":[],"total_count":0}`)
	})

	_, err := client.ListIssues(context.Background(), IssueListOptions{
		ProjectID:      "10",
		FixedVersionID: 100,
		Limit:          50,
		Include:        []string{"journals", "watchers"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"10"}, gotQuery["project_id"])
	assert.Equal(t, []string{"100"}, gotQuery["fixed_version_id"])
	assert.Equal(t, []string{"50"}, gotQuery["limit"])
	assert.Equal(t, []string{"journals,watchers"}, gotQuery["include"])
	assert.NotContains(t, gotQuery, "offset")
	assert.NotContains(t, gotQuery, "status_id")
}

func TestClient_GetProject(t *testing.T) {
	t.Run("returns project with children", func(t *testing.T) {
		var gotInclude string
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotInclude = r.URL.Query().Get("include")
			fmt.Fprint(w, `{"project":{"id":1,"identifier":"root","name":"Root","children":[{"id":10,"identifier":"sub-a","name":"Sub A"}]}}`)
		})

		project, err := client.GetProject(context.Background(), "root", "children")
		require.NoError(t, err)
		assert.Equal(t, "children", gotInclude)
		assert.Equal(t, "Root", project.Name)
		require.Len(t, project.Children, 1)
		assert.Equal(t, "sub-a", project.Children[0].Identifier)
	})

	t.Run("empty body is reported as not found", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		})

		_, err := client.GetProject(context.Background(), "root")
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}

func TestClient_PathEscaping(t *testing.T) {
	tests := []struct {
		name    string
		project string
		want    string
	}{
		{name: "plain identifier", project: "sub-a", want: "/redmine/projects/sub-a/versions.json"},
		{name: "space", project: "a b", want: "/redmine/projects/a%20b/versions.json"},
		{name: "slash stays in one segment", project: "a/b", want: "/redmine/projects/a%2Fb/versions.json"},
		{name: "percent", project: "100%", want: "/redmine/projects/100%25/versions.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.EscapedPath()
				fmt.Fprint(w, `{"versions":[],"total_count":0}`)
			})

			_, err := client.ListVersions(context.Background(), tt.project)
			require.NoError(t, err)
			assert.Equal(t, tt.want, gotPath)
		})
	}
}
