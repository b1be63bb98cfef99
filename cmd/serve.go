package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/popcode/internal/instructions"
	"github.com/conneroisu/popcode/internal/server"
	"github.com/conneroisu/popcode/internal/watcher"
	"github.com/conneroisu/popcode/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the workspace over HTTP and WebSocket",
	Long: `Serve the workspace to a browser view. The view reads state from
/api/state or the /ws socket and posts UI events to /api/events.

The first page load starts the workspace; a ?gist=<id> query on that load
opens the gist. --gist opens a gist without waiting for a page load.

Examples:
  popcode serve                           # Serve on localhost:8080
  popcode serve --port 3000 --gist abc123 # Open a gist on startup
  popcode serve --project-dir ./projects  # Watch project files on disk`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().String("gist", "", "Gist to open on startup")
	serveCmd.Flags().String("project-dir", ".", "Directory of project files to watch")
	serveCmd.Flags().Bool("watch", true, "Apply project file changes from disk")
	serveCmd.Flags().String("project", "", "Project file to open on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	gistID, _ := cmd.Flags().GetString("gist")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := websocket.NewManager(websocket.AllowedOrigins(cfg.Server.AllowedOrigins), logger)
	a, err := newApp(ctx, cfg, logger, appOptions{
		opener:            websocket.NewRemoteWindows(manager),
		confirmer:         websocket.NewRemoteConfirmer(manager, 0),
		instructionsStyle: instructions.StylePlain,
	})
	if err != nil {
		return err
	}

	var opts []server.Option
	if gistID != "" {
		opts = append(opts, server.WithInitialGist(gistID))
	}
	srv := server.New(cfg.Server, a.controller, manager, logger, opts...)

	projects := watcher.NewProjectSync(a.controller, logger)
	if cfg.Workspace.DefaultProject != "" {
		if _, err := projects.Open(ctx, cfg.Workspace.DefaultProject); err != nil {
			return fmt.Errorf("opening default project: %w", err)
		}
	}
	a.signIn(ctx, cfg)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if cfg.Workspace.Watch {
		g.Go(func() error {
			fw, err := projects.Watch(ctx, cfg.Workspace.ProjectDir, watcher.DefaultDebounce)
			if err != nil {
				return err
			}
			<-ctx.Done()
			return fw.Stop()
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving popcode on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if reports := a.collector.Reports(); len(reports) > 0 {
		logger.Info(context.Background(), "Session ended with reported errors", "count", len(reports))
	}
	return nil
}
