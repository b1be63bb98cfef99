package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/popcode/internal/project"
	"github.com/conneroisu/popcode/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:     "validate <project-file>",
	Aliases: []string{"v"},
	Short:   "Validate the sources of a project file",
	Long: `Run the HTML, CSS and JavaScript validators over a project file and print
the overall validation state and every error found. Exits non-zero when any
source fails.

Examples:
  popcode validate project.json
  popcode validate project.yaml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
}

// validateOutput is the json output of the validate command.
type validateOutput struct {
	Project string                                 `json:"projectKey"`
	State   validation.State                       `json:"validationState"`
	Results map[project.Language]validation.Result `json:"results"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}

	p, err := project.LoadFile(args[0])
	if err != nil {
		return err
	}

	results := validation.DefaultSet().ValidateProject(cmd.Context(), p)
	out := validateOutput{
		Project: p.Key(),
		State:   validation.Aggregate(validation.StatesOf(results), false),
		Results: results,
	}

	w := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "%s: %s\n", args[0], out.State)
		for _, lang := range project.Languages {
			result, ok := results[lang]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %-10s %s\n", lang.Label(), result.State)
			for _, item := range result.Items {
				fmt.Fprintf(w, "    %d:%d %s\n", item.Line, item.Column, item.Message)
			}
		}
	}

	if out.State == validation.Failed {
		return fmt.Errorf("%s failed validation", args[0])
	}
	return nil
}
