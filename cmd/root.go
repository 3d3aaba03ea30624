package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpratt27/winsight/internal/config"
	"github.com/mpratt27/winsight/internal/logging"
	"github.com/mpratt27/winsight/internal/output"
	"github.com/mpratt27/winsight/internal/platform"
	"github.com/mpratt27/winsight/internal/version"
)

// cfg is the loaded configuration, available to every subcommand.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "winsight",
	Short: "Track and query desktop windows",
	Long:  "A window-intelligence engine that maintains a live model of every application window and streams change events.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	rootCmd.PersistentFlags().String("format", "yaml", "Output format: yaml, json")
	rootCmd.PersistentFlags().Bool("pretty", false, "Pretty-print JSON output")
	rootCmd.PersistentFlags().String("config", "", "Config file path")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if platform.RequestPermissionsFunc != nil {
			platform.RequestPermissionsFunc()
		}

		path, _ := rootCmd.PersistentFlags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.LogLevel
		if flagLevel, _ := rootCmd.PersistentFlags().GetString("log-level"); flagLevel != "" {
			level = flagLevel
		}
		logging.Init(level, cfg.LogPretty)

		format, _ := rootCmd.PersistentFlags().GetString("format")
		switch format {
		case "yaml":
			output.OutputFormat = output.FormatYAML
		case "json":
			output.OutputFormat = output.FormatJSON
		default:
			return fmt.Errorf("unsupported format: %s (use yaml or json)", format)
		}
		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			output.PrettyOutput = true
		}
		return nil
	}
}
