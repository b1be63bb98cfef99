package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/conneroisu/popcode/internal/auth"
	"github.com/conneroisu/popcode/internal/config"
	perrors "github.com/conneroisu/popcode/internal/errors"
	"github.com/conneroisu/popcode/internal/export"
	"github.com/conneroisu/popcode/internal/gists"
	"github.com/conneroisu/popcode/internal/instructions"
	"github.com/conneroisu/popcode/internal/logging"
	"github.com/conneroisu/popcode/internal/store"
	"github.com/conneroisu/popcode/internal/workspace"
)

// app is one assembled workspace.
type app struct {
	controller *workspace.Controller
	gists      *gists.Client
	auth       *auth.TokenProvider
	collector  *perrors.Collector
	logger     logging.Logger
}

// appOptions override the collaborators the view layer provides.
type appOptions struct {
	opener            export.Opener
	confirmer         export.Confirmer
	instructionsStyle string
	instructionsWidth int
}

// newApp wires the workspace. ctx bounds its background work.
func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger, opts appOptions) (*app, error) {
	client := gists.NewClient(gists.Config{
		APIURL:  cfg.Gists.APIURL,
		Token:   cfg.Gists.Token,
		Public:  cfg.Gists.Public,
		Timeout: cfg.Gists.Timeout,
	}, logger)
	provider := auth.NewTokenProvider(client, auth.StaticToken(cfg.Auth.Token),
		cfg.Auth.HeartbeatInterval, logger)
	collector := perrors.NewCollector(logger)

	style := opts.instructionsStyle
	if style == "" {
		style = instructions.StylePlain
	}

	var exportOpts []export.Option
	if cfg.Workspace.ExportTimeout > 0 {
		exportOpts = append(exportOpts, export.WithTimeout(cfg.Workspace.ExportTimeout))
	}

	controller, err := workspace.New(workspace.Dependencies{
		Context:      ctx,
		Store:        store.New(logger),
		Auth:         provider,
		Gists:        client,
		Opener:       opts.opener,
		Confirmer:    opts.confirmer,
		Reporter:     collector,
		Instructions: instructions.NewRenderer(style, opts.instructionsWidth),
		Logger:       logger,
		ExportOpts:   exportOpts,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		controller: controller,
		gists:      client,
		auth:       provider,
		collector:  collector,
		logger:     logger,
	}, nil
}

// signIn signs in with the configured token, if any.
func (a *app) signIn(ctx context.Context, cfg *config.Config) {
	if cfg.Auth.Token == "" {
		return
	}
	a.controller.LogInRequested(ctx)
}

// promptConfirmer asks on a terminal. Anything but y or yes is a no.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) Confirm(_ context.Context, prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	answer, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
