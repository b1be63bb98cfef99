package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/conneroisu/popcode/internal/instructions"
	"github.com/conneroisu/popcode/internal/tui"
	"github.com/conneroisu/popcode/internal/watcher"
)

var tuiCmd = &cobra.Command{
	Use:     "tui [project-file]",
	Aliases: []string{"t"},
	Short:   "Open the workspace in the terminal",
	Long: `Open the workspace in a terminal view. With a project file the project is
opened and, unless --watch=false, reloaded whenever the file or the loose
index.html, styles.css and script.js next to it change.

Examples:
  popcode tui
  popcode tui project.json
  popcode tui --gist abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().String("gist", "", "Gist to open")
	tuiCmd.Flags().Bool("watch", true, "Apply file changes from the project's directory")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	gistID, _ := cmd.Flags().GetString("gist")
	watch, _ := cmd.Flags().GetBool("watch")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	style := instructions.StyleLight
	if lipgloss.HasDarkBackground() {
		style = instructions.StyleDark
	}
	confirmer := tui.NewConfirmer()
	a, err := newApp(ctx, cfg, logger, appOptions{
		confirmer:         confirmer,
		instructionsStyle: style,
		instructionsWidth: 80,
	})
	if err != nil {
		return err
	}

	if len(args) == 1 {
		projects := watcher.NewProjectSync(a.controller, logger)
		if _, err := projects.Open(ctx, args[0]); err != nil {
			return err
		}
		if watch {
			fw, err := projects.Watch(ctx, filepath.Dir(args[0]), watcher.DefaultDebounce)
			if err != nil {
				return err
			}
			defer fw.Stop()
		}
	}
	a.controller.Start(ctx, gistID)
	a.signIn(ctx, cfg)

	model := tui.New(ctx, a.controller, tui.WithConfirmer(confirmer))
	defer model.Close()

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	a.controller.Wait()
	return err
}
