package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/session"
	"github.com/conneroisu/popcode/internal/version"
	"github.com/conneroisu/popcode/internal/workspace"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// UnloadResponse tells the view whether leaving needs confirmation.
type UnloadResponse struct {
	Confirm bool   `json:"confirm"`
	Prompt  string `json:"prompt,omitempty"`
}

// handleIndex serves the shell page. The first page load starts the
// workspace; a gist query parameter on that load names the initial gist and
// is then stripped by a redirect.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	gistID := r.URL.Query().Get("gist")
	s.startWorkspace(gistID)
	if gistID != "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	var buf bytes.Buffer
	if err := indexPage(version.Short()).Render(r.Context(), &buf); err != nil {
		s.logger.Error(r.Context(), err, "Cannot render index page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.Copy(w, &buf)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, s.controller.ReadModel()); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode state response")
	}
}

// handleEvents decodes one event and dispatches it. Malformed events are a
// 400; a failed export is a 502 since the gist service is upstream. The
// dispatch runs on the server context so that a client hanging up does not
// abandon an export halfway.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, err)
			return
		}
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	event, err := workspace.DecodeEvent(body)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if err := s.controller.Dispatch(ctx, event); err != nil {
		status := http.StatusInternalServerError
		switch {
		case perrors.IsType(err, perrors.ErrorTypeValidation):
			status = http.StatusBadRequest
		case perrors.IsType(err, perrors.ErrorTypeExport),
			perrors.IsType(err, perrors.ErrorTypeNetwork),
			perrors.IsType(err, perrors.ErrorTypeAuth):
			status = http.StatusBadGateway
		}
		s.writeError(w, r, status, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, s.controller.ReadModel()); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode event response")
	}
}

func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	resp := UnloadResponse{Confirm: s.controller.UnloadRequested(r.Context())}
	if resp.Confirm {
		resp.Prompt = session.UnloadPrompt
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode unload response")
	}
}

// handleHealth returns the server health status for health checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	model := s.controller.ReadModel()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.Short(),
		"checks": map[string]interface{}{
			"workspace": map[string]interface{}{"loaded": model.Loaded, "projects": len(model.Projects)},
			"websocket": map[string]interface{}{"clients": s.ws.ConnectedClients()},
		},
	}
	if err := writeJSON(w, http.StatusOK, health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Request failed", "path", r.URL.Path, "status", status)
	} else {
		s.logger.Debug(r.Context(), "Request rejected", "path", r.URL.Path, "status", status, "error", err.Error())
	}
	if encodeErr := writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: perrors.Code(err)}); encodeErr != nil {
		s.logger.Warn(r.Context(), encodeErr, "Failed to encode error response")
	}
}
