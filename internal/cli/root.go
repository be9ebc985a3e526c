package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/policygap/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via ldflags
var Version = "0.1.0"

var (
	cfgFile     string
	verbose     bool
	llmProvider string
	llmModel    string
	colorMode   string
	dbPath      string
	noCache     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "policygap",
	Short: "policygap - coverage and gap analysis for synthetic policy test suites",
	Long: `policygap measures how well a set of golden test scenarios covers a policy.

It breaks the policy into a taxonomy of testable sub-categories, tags each
scenario with the sub-categories it exercises, and reports coverage per
sub-category with prioritised gaps and suggestions for what to generate next.

Coverage measures spread across the taxonomy, not whether the policy is correct.`,
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
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "policygap v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.policygap/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama); empty disables LLM calls")
	flags.StringVar(&llmModel, "llm-model", "", "LLM model name")
	flags.StringVar(&colorMode, "color", "", "colour output: auto, always, never")
	flags.StringVar(&dbPath, "db", "", "run store path (default: storage.path from config)")
	flags.BoolVar(&noCache, "no-cache", false, "disable the LLM response cache")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("llm.provider", flags.Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", flags.Lookup("llm-model"))
	_ = viper.BindPFlag("output.color", flags.Lookup("color"))
	_ = viper.BindPFlag("storage.path", flags.Lookup("db"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := setDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading defaults: %v\n", err)
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".policygap"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match POLICYGAP_* (POLICYGAP_LLM_PROVIDER -> llm.provider)
	viper.SetEnvPrefix("POLICYGAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key of cfg with viper so env vars can override
// keys that no config file mentions.
func setDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	flatten("", tree, viper.SetDefault)
	return nil
}

func flatten(prefix string, tree map[string]any, set func(string, any)) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok && len(sub) > 0 && !strings.HasSuffix(key, "priority_multipliers") {
			flatten(key, sub, set)
			continue
		}
		set(key, v)
	}
}

// loadConfig resolves the effective configuration: defaults, config file,
// POLICYGAP_* env, flags. API keys come only from the provider's env var.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	if err := cfg.Coverage.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("coverage.thresholds: %w", err)
	}
	return cfg, nil
}
