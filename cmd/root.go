package cmd

import (
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "job-hunter"
)

type Config struct {
	PreferencesFile string        `mapstructure:"preferences-file"`
	ResumeFile      string        `mapstructure:"resume-file"`
	DatabaseFile    string        `mapstructure:"database-file"`
	LockFile        string        `mapstructure:"lock-file"`
	Search          *SearchConfig `mapstructure:"search"`
	AI              *AIConfig     `mapstructure:"ai"`
}

type SearchConfig struct {
	NumResults int    `mapstructure:"num-results"`
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	ScoringModel   string `mapstructure:"scoring-model"`
	TailoringModel string `mapstructure:"tailoring-model"`
	OutreachModel  string `mapstructure:"outreach-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-hunter discovers, scores and tracks job listings matched to your preferences",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envBindings := map[string]string{
		"search.api-key":         "JH_SERPAPI_KEY",
		"search.api-key-file":    "JH_SERPAPI_KEY_FILE",
		"ai.gemini.api-key":      "JH_GEMINI_API_KEY",
		"ai.gemini.api-key-file": "JH_GEMINI_API_KEY_FILE",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-hunter.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("preferences-file", "data/preferences.json")
	viper.SetDefault("resume-file", "data/base_resume.json")
	viper.SetDefault("database-file", "data/jobs.db")
	viper.SetDefault("lock-file", "data/discovery.lock")
	viper.SetDefault("search.num-results", 10)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.scoring-model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.tailoring-model", "gemini-2.5-pro")
	viper.SetDefault("ai.gemini.outreach-model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 2)
	viper.SetDefault("ai.gemini.max-log-length", 200)
}

func initConfig() {
	// Config is needed only for commands that talk to providers or the store.
	if runCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	// Key material can live in a local .env during development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Defaults and env bindings cover a configless start, but an
		// explicitly named config file has to parse.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
