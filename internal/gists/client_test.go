package gists

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/popcode/internal/auth"
	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/project"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIURL: server.URL, Token: "anon-token", Public: true, Timeout: 5 * time.Second}, logging.NewNopLogger())
}

func blankProject() project.Project {
	p := project.New("p1")
	return p.WithSource(project.HTML, "  \n", time.Now())
}

func TestFilesRejectsBlankProject(t *testing.T) {
	_, err := Files(blankProject())
	assert.True(t, perrors.IsEmptyGist(err))
}

func TestFilesSkipsBlankSources(t *testing.T) {
	p := project.New("p1").
		WithSource(project.CSS, "p { color: red; }", time.Now()).
		WithInstructions(project.Instructions{Markdown: "# Do it"}, time.Now())

	files, err := Files(p)
	require.NoError(t, err)

	assert.Contains(t, files, FileHTML)
	assert.Contains(t, files, FileCSS)
	assert.NotContains(t, files, FileJavaScript)
	assert.Equal(t, "# Do it", files[FileInstructions].Content)
	assert.Contains(t, files[FileProject].Content, `"projectKey": "p1"`)
}

func TestCreateFromProject(t *testing.T) {
	var (
		gotAuth string
		gotBody createRequest
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gists", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc","html_url":"https://gist.github.com/abc"}`))
	})

	user := auth.Credential{User: auth.User{Login: "octo"}, AccessToken: "user-token"}.AuthenticatedUser()
	resp, err := client.CreateFromProject(context.Background(), project.New("p1"), user)
	require.NoError(t, err)

	assert.Equal(t, "https://gist.github.com/abc", resp.HTMLURL)
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, Description, gotBody.Description)
	assert.True(t, gotBody.Public)
	assert.Contains(t, gotBody.Files, FileHTML)
}

func TestCreateFromProjectAnonymousUsesConfiguredToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"html_url":"https://gist.github.com/x"}`))
	})

	_, err := client.CreateFromProject(context.Background(), project.New("p1"), auth.Anonymous())
	require.NoError(t, err)
	assert.Equal(t, "Bearer anon-token", gotAuth)
}

func TestCreateFromProjectEmptyMakesNoRequest(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.CreateFromProject(context.Background(), blankProject(), auth.Anonymous())
	assert.True(t, perrors.IsEmptyGist(err))
	assert.False(t, called)
}

func TestStatusErrors(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		path     string
		expected perrors.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, "/user", perrors.ErrorTypeAuth},
		{"missing gist", http.StatusNotFound, "/gists/nope", perrors.ErrorTypeIO},
		{"server error", http.StatusBadGateway, "/gists", perrors.ErrorTypeNetwork},
		{"unprocessable", http.StatusUnprocessableEntity, "/gists", perrors.ErrorTypeExport},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			err := client.do(context.Background(), http.MethodGet, tc.path, "", nil, &Response{})
			require.Error(t, err)
			assert.True(t, perrors.IsType(err, tc.expected))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestCurrentUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":42,"login":"octo","name":"Octo Cat"}`))
	})

	user, err := client.CurrentUser(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, auth.User{ID: "42", Login: "octo", DisplayName: "Octo Cat"}, user)
}

func TestLoadProjectFromProjectDocument(t *testing.T) {
	original := project.New("original").WithSource(project.CSS, "a {}", time.Now())
	encoded, err := project.Encode(original, project.FormatJSON)
	require.NoError(t, err)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gists/abc", r.URL.Path)
		_ = json.NewEncoder(w).Encode(gistDocument{
			ID:    "abc",
			Files: map[string]File{FileProject: {Content: string(encoded)}},
		})
	})

	p, err := client.LoadProject(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "a {}", p.Source(project.CSS))
	assert.NotEqual(t, "original", p.Key())
	assert.NotEmpty(t, p.Key())
}

func TestLoadProjectFromSourceFiles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gistDocument{
			ID: "abc",
			Files: map[string]File{
				FileHTML:         {Content: "<p>hi</p>"},
				FileJavaScript:   {Content: "alert(1)"},
				FileInstructions: {Content: "# Steps"},
			},
		})
	})

	p, err := client.LoadProject(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", p.Source(project.HTML))
	assert.Equal(t, "alert(1)", p.Source(project.JavaScript))
	assert.Empty(t, p.Source(project.CSS))
	assert.Equal(t, "# Steps", p.Instructions().Markdown)
}
