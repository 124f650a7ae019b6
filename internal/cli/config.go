package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/casecite/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const configHeader = `# casecite configuration
#
# Precedence: CLI flags, then CASECITE_* environment variables, then this file,
# then built-in defaults. Keys map to env vars with "." replaced by "_", e.g.
# verification.requests_per_second -> CASECITE_VERIFICATION_REQUESTS_PER_SECOND.
#
# Secrets belong in the environment:
#   COURTLISTENER_API_TOKEN  CourtListener API token
#   OPENAI_API_KEY           key for --llm openai

`

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage casecite configuration",
	Long: `Manage casecite configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CASECITE_*, COURTLISTENER_API_TOKEN)
3. Config file (~/.casecite/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration: defaults overlaid with the config file and environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n", f)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n")
		}

		data, err := renderConfig(redacted(cfg), "")
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.casecite/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("find home directory: %w", err)
			}
			path = filepath.Join(home, ".casecite", "config.yaml")
		}

		if err := writeDefaultConfig(path); err != nil {
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("config file already exists: %s (view it with 'casecite config show')", path)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created default configuration: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// renderConfig marshals cfg to YAML behind an optional comment header
func renderConfig(cfg *model.Config, header string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// writeDefaultConfig writes the defaults to path. It never overwrites an
// existing file.
func writeDefaultConfig(path string) error {
	data, err := renderConfig(model.DefaultConfig(), configHeader)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}

// redacted returns a copy of cfg that is safe to print
func redacted(cfg *model.Config) *model.Config {
	out := *cfg
	if out.Verification.APIToken != "" {
		out.Verification.APIToken = "********"
	}
	return &out
}
