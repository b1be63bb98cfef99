// Package cmd provides the command-line interface for popcode.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--port, --log-level, ...)
//  2. Environment variables following POPCODE_<SECTION>_<OPTION>, e.g.
//     POPCODE_SERVER_PORT or POPCODE_GISTS_TOKEN
//  3. The configuration file: --config, POPCODE_CONFIG_FILE, or .popcode.yml
//     in the working or home directory
//  4. Built-in defaults
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/popcode/internal/config"
	"github.com/conneroisu/popcode/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "popcode",
	Short: "An HTML, CSS and JavaScript workspace that exports to GitHub gists",
	Long: `popcode hosts an editor workspace: three stacked source panes with live
validation, project switching, instructions, and one-step export of the
current project to a GitHub gist.

Quick Start:
  popcode serve                   Serve the workspace to a browser view
  popcode tui project.json        Open a project in the terminal view
  popcode validate project.json   Validate a project's sources
  popcode export project.json     Export a project to a gist`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .popcode.yml, can also use POPCODE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"port":        "server.port",
	"host":        "server.host",
	"project-dir": "workspace.project_dir",
	"watch":       "workspace.watch",
	"project":     "workspace.default_project",
}

func initConfig(cmd *cobra.Command, _ []string) error {
	file := cfgFile
	if file == "" {
		file = os.Getenv("POPCODE_CONFIG_FILE")
	}
	if err := config.InitViper(file); err != nil {
		return err
	}
	return bindFlags(cmd.Flags())
}

// bindFlags binds every flag of the running command that has a
// configuration key.
func bindFlags(flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = viper.BindPFlag(key, f)
	})
	return err
}

// loadConfig loads the configuration and the logger it describes.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}
