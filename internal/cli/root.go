package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/casecite/internal/logging"
	"github.com/ppiankov/casecite/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version is set at build time
var Version = "v0.3.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "casecite",
	Short: "casecite - legal citation extraction and verification",
	Long: `casecite finds case citations in briefs and opinions, recovers the case
name and year from the surrounding text, and checks every citation against
an authoritative case-law database.

Citations the database does not know are reported as hallucinated.
casecite checks that cited cases exist. It does not evaluate legal arguments.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of casecite.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "casecite %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.casecite/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".casecite"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CASECITE_* (e.g. CASECITE_CACHE_DISK_DIR)
	viper.SetEnvPrefix("CASECITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// bindEnv registers every config key so that environment variables reach
// Unmarshal even when the key is absent from the config file
func bindEnv() {
	keys := []string{
		"extraction.preceding_window", "extraction.trailing_window", "extraction.unpublished_window",
		"extraction.min_year", "extraction.false_positive_filter", "extraction.confidence_scoring",
		"verification.enabled", "verification.provider", "verification.base_url",
		"verification.request_timeout", "verification.document_timeout", "verification.workers",
		"verification.requests_per_second", "verification.burst", "verification.max_attempts",
		"cache.enabled", "cache.memory_ttl", "cache.disk_dir", "cache.disk_ttl",
		"http.timeout", "http.user_agent", "http.max_body_bytes", "http.respect_robots",
		"store.path",
		"llm.provider", "llm.model", "llm.base_url", "llm.timeout", "llm.max_tokens",
	}
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	_ = viper.BindEnv("verification.api_token", "CASECITE_VERIFICATION_API_TOKEN", "COURTLISTENER_API_TOKEN")
	_ = viper.BindEnv("llm.api_key", "CASECITE_LLM_API_KEY", "OPENAI_API_KEY")
	_ = viper.BindEnv("http.http_proxy", "CASECITE_HTTP_HTTP_PROXY", "HTTP_PROXY")
	_ = viper.BindEnv("http.https_proxy", "CASECITE_HTTP_HTTPS_PROXY", "HTTPS_PROXY")
	_ = viper.BindEnv("http.no_proxy", "CASECITE_HTTP_NO_PROXY", "NO_PROXY")
}

// loadConfig layers config file and environment over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Cache.DiskDir == "" && cfg.Cache.Enabled {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Cache.DiskDir = filepath.Join(home, ".casecite", "cache")
		}
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	return cfg, nil
}

func newLogger() *zap.Logger {
	return logging.Must(verbose)
}
