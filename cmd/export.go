package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/popcode/internal/export"
	"github.com/conneroisu/popcode/internal/watcher"
	"github.com/conneroisu/popcode/internal/workspace"
)

var exportCmd = &cobra.Command{
	Use:     "export <project-file>",
	Aliases: []string{"e"},
	Short:   "Export a project file to a GitHub gist",
	Long: `Export a project file (JSON or YAML) to a GitHub gist and print its URL.

Without a signed-in user (auth.token) the gist is created anonymously with
gists.token, after confirmation. --yes skips the confirmation.

Examples:
  popcode export project.json
  POPCODE_AUTH_TOKEN=ghp_... popcode export project.yaml
  popcode export project.json --yes --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().BoolP("yes", "y", false, "Export anonymously without asking")
	exportCmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
}

// exportOutput is the json output of the export command.
type exportOutput struct {
	Project string `json:"projectKey"`
	Status  string `json:"status"`
	URL     string `json:"url,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}

	var confirmer export.Confirmer = promptConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
	if yes {
		confirmer = workspace.AlwaysConfirm(true)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, logger, appOptions{confirmer: confirmer})
	if err != nil {
		return err
	}

	a.controller.Start(ctx, "")
	a.signIn(ctx, cfg)
	p, err := watcher.NewProjectSync(a.controller, logger).Open(ctx, args[0])
	if err != nil {
		return err
	}

	result, err := a.controller.ExportRequested(ctx)
	a.controller.Wait()

	out := exportOutput{Project: p.Key()}
	switch r := result.(type) {
	case export.Succeeded:
		out.Status, out.URL = "exported", r.URL
	case export.FailedEmpty:
		out.Status, out.Reason = "failed", "the project has no source to export"
		err = fmt.Errorf("%s: nothing to export", args[0])
	case export.FailedGeneric:
		out.Status, out.Reason = "failed", r.Cause.Error()
	case export.Skipped:
		out.Status, out.Reason = "skipped", r.Reason
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encodeErr := enc.Encode(out); encodeErr != nil {
			return encodeErr
		}
		return err
	}

	switch out.Status {
	case "exported":
		fmt.Fprintln(cmd.OutOrStdout(), out.URL)
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Export %s: %s\n", out.Status, out.Reason)
	}
	return err
}
