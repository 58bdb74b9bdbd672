package cmd

import (
	"errors"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "jobradar"
	envPrefix = "JOBRADAR"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobradar searches job boards for every user, scores the listings and notifies about the best matches",
		// Usage output only helps with flag mistakes.
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobradar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command works without any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	configureViper()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
	case errors.As(err, &notFound) && cfgFile == "":
		// Defaults and environment are enough to start.
	default:
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

// configureViper registers defaults and maps keys such as scoring.gate-threshold
// to JOBRADAR_SCORING_GATE_THRESHOLD.
func configureViper() {
	setDefaults()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		"secrets.headhunter-token-file":  "HH_TOKEN_FILE",
		"secrets.gemini-api-key-file":    "GEMINI_API_KEY_FILE",
		"secrets.adzuna-app-key-file":    "ADZUNA_APP_KEY_FILE",
		"secrets.scrapesvc-api-key-file": "SCRAPESVC_API_KEY_FILE",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}
}
