// Package gists talks to the GitHub gist API: it creates a gist from a
// project, loads a project back from a gist and resolves access tokens to
// users for sign-in.
package gists

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/conneroisu/popcode/internal/auth"
	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/project"
)

// DefaultAPIURL is the public GitHub API.
const DefaultAPIURL = "https://api.github.com"

// Gist file names for each part of a project.
const (
	FileHTML         = "index.html"
	FileCSS          = "styles.css"
	FileJavaScript   = "script.js"
	FileProject      = "popcode.json"
	FileInstructions = "README.md"
)

// Description is attached to every exported gist.
const Description = "Exported from Popcode."

var languageFiles = map[project.Language]string{
	project.HTML:       FileHTML,
	project.CSS:        FileCSS,
	project.JavaScript: FileJavaScript,
}

// Response is the part of the gist API reply the workspace needs.
type Response struct {
	ID      string `json:"id"`
	HTMLURL string `json:"html_url"`
}

// File is one file in a gist.
type File struct {
	Content string `json:"content"`
}

type createRequest struct {
	Description string          `json:"description"`
	Public      bool            `json:"public"`
	Files       map[string]File `json:"files"`
}

type gistDocument struct {
	ID      string          `json:"id"`
	HTMLURL string          `json:"html_url"`
	Files   map[string]File `json:"files"`
}

type userDocument struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

// Config configures a Client.
type Config struct {
	APIURL string
	// Token is used for exports by users who are not signed in.
	Token   string
	Public  bool
	Timeout time.Duration
}

// Client is a gist API client.
type Client struct {
	baseURL string
	token   string
	public  bool
	http    *http.Client
	logger  logging.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	baseURL := strings.TrimRight(cfg.APIURL, "/")
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		baseURL: baseURL,
		token:   cfg.Token,
		public:  cfg.Public,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.WithComponent("gists"),
	}
}

// Files builds the gist file set for p. Blank sources are left out.
func Files(p project.Project) (map[string]File, error) {
	if p.Sources().IsBlank() {
		return nil, perrors.ErrEmptyGist
	}

	files := make(map[string]File, len(languageFiles)+2)
	for _, lang := range project.Languages {
		if text := p.Source(lang); strings.TrimSpace(text) != "" {
			files[languageFiles[lang]] = File{Content: text}
		}
	}
	if !p.Instructions().IsEmpty() {
		files[FileInstructions] = File{Content: p.Instructions().Markdown}
	}

	encoded, err := project.Encode(p, project.FormatJSON)
	if err != nil {
		return nil, perrors.NewInternalError(perrors.CodeInternalError, "cannot encode project", err)
	}
	files[FileProject] = File{Content: string(encoded)}
	return files, nil
}

// CreateFromProject exports p as a gist owned by user, or anonymously with
// the configured token when user is not signed in. A project with no source
// content fails with errors.ErrEmptyGist.
func (c *Client) CreateFromProject(ctx context.Context, p project.Project, user auth.User) (Response, error) {
	files, err := Files(p)
	if err != nil {
		return Response{}, err
	}

	token := c.token
	if user.Authenticated && user.AccessToken != "" {
		token = user.AccessToken
	}

	body, err := json.Marshal(createRequest{Description: Description, Public: c.public, Files: files})
	if err != nil {
		return Response{}, perrors.NewInternalError(perrors.CodeInternalError, "cannot encode gist", err)
	}

	var out Response
	if err := c.do(ctx, http.MethodPost, "/gists", token, body, &out); err != nil {
		return Response{}, err
	}
	c.logger.Info(ctx, "Gist created", "project", p.Key(), "url", out.HTMLURL)
	return out, nil
}

// LoadProject fetches a gist and rebuilds the project it was exported from.
// Gists without a project document are assembled from their source files.
func (c *Client) LoadProject(ctx context.Context, gistID string) (project.Project, error) {
	var doc gistDocument
	if err := c.do(ctx, http.MethodGet, "/gists/"+gistID, c.token, nil, &doc); err != nil {
		return project.Project{}, err
	}

	if file, ok := doc.Files[FileProject]; ok {
		p, err := project.Parse([]byte(file.Content), project.FormatJSON)
		if err != nil {
			return project.Project{}, err
		}
		return p.WithKey(project.NewKey()), nil
	}

	raw := project.Raw{ProjectKey: project.NewKey(), Sources: map[string]string{}}
	for lang, name := range languageFiles {
		if file, ok := doc.Files[name]; ok {
			raw.Sources[string(lang)] = file.Content
		}
	}
	if file, ok := doc.Files[FileInstructions]; ok {
		raw.Instructions.Markdown = file.Content
	}
	return project.FromJS(raw), nil
}

// CurrentUser resolves token to its GitHub user.
func (c *Client) CurrentUser(ctx context.Context, token string) (auth.User, error) {
	var doc userDocument
	if err := c.do(ctx, http.MethodGet, "/user", token, nil, &doc); err != nil {
		return auth.User{}, err
	}
	return auth.User{
		ID:          fmt.Sprint(doc.ID),
		Login:       doc.Login,
		DisplayName: doc.Name,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return perrors.NewInternalError(perrors.CodeInternalError, "cannot build gist request", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return perrors.NewNetworkError(perrors.CodeExportFailed,
			fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(method, path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return perrors.NewExportError(perrors.CodeExportFailed, "cannot decode gist response", err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	var apiErr struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
	msg := fmt.Sprintf("%s %s: http %d", method, path, resp.StatusCode)
	if apiErr.Message != "" {
		msg += ": " + apiErr.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return perrors.NewAuthError(CodeBadCredentials, msg, nil)
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/gists/"):
		return perrors.NewIOError(perrors.CodeFileNotFound, msg, nil)
	case resp.StatusCode >= 500:
		return perrors.NewNetworkError(perrors.CodeExportFailed, msg, nil)
	default:
		return perrors.NewExportError(perrors.CodeExportFailed, msg, nil)
	}
}

// CodeBadCredentials is the auth code for a rejected access token.
const CodeBadCredentials = "auth/invalid-user-token"
