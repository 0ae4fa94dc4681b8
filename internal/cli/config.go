package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oculairmedia/Claudecode-graphiti-hook/internal/core"
	"github.com/oculairmedia/Claudecode-graphiti-hook/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the graphiti-hook configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, .graphiti-hook.yaml and GRAPHITI_*
environment overrides have been applied.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := renderConfigYAML(activeConfig())
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ConfigMgr == nil {
			return fmt.Errorf("configuration manager not initialized")
		}
		cfg := activeConfig()
		if err := ConfigMgr.ValidateConfig(&cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file and log file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		file := ""
		if ConfigMgr != nil {
			file = ConfigMgr.ConfigFile()
		}
		if file == "" {
			file = "(none, using defaults and environment)"
		} else if abs, err := filepath.Abs(file); err == nil {
			file = abs
		}
		fmt.Fprintf(w, "Config file: %s\n", file)
		if LogPath != "" {
			fmt.Fprintf(w, "Log file:    %s\n", LogPath)
		}
		return nil
	},
}

// renderConfigYAML marshals cfg in the layout of .graphiti-hook.yaml, so the
// output can be saved as the config file. Durations render as "30s".
func renderConfigYAML(cfg models.Config) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("formatting config as YAML: %w", err)
	}
	return fmt.Sprintf("# %s.yaml\n%s", core.ConfigFileName, out), nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
