package main

import (
	"errors"
	"fmt"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.driftcloud.dev/drift"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "drift",
	Short: "Deploy apps to the Drift Cloud hosting service",
	Long: `Drift is a CLI tool for deploying apps to the Drift Cloud hosting service.

It authenticates against the hosting API and manages apps, deployments,
projects and secrets. Deployment settings are read from a drift.yml file or
the [tool.drift] table of project.toml, with command line flags taking
precedence.
`,
	SilenceUsage: true, // this prevents the usage from being shown when Command.RunE returns an error
}

var globalConfig = viper.New()

var (
	flagToken       string
	flagLogLevel    string
	flagJSON        bool
	flagInteractive bool
)

func init() {
	cobra.OnInitialize(initGlobalConfig)
	cobra.OnInitialize(initLogLevel)

	pf := rootCmd.PersistentFlags()

	pf.StringVar(&flagToken, "token", "", "The authentication token")
	pf.StringVar(&flagLogLevel, "loglevel", "info", "The log level to use (debug, info, warn, error)")
	pf.BoolVarP(&flagJSON, "json", "j", false, "Output results in JSON format")
	pf.BoolVarP(&flagInteractive, "interactive", "i", true, "Whether to use interactive mode")
}

// initGlobalConfig reads in config file and ENV variables if set for global configuration settings.
func initGlobalConfig() {
	configFilePath, err := xdg.ConfigFile("drift/config.yaml")

	cobra.CheckErr(err)

	globalConfig.SetConfigFile(configFilePath)

	globalConfig.SetEnvPrefix("drift")
	globalConfig.AutomaticEnv() // read in environment variables that match

	globalConfig.SetDefault("api_url", drift.DefaultBaseURL)

	// If a config file is found, read it in.
	if err := globalConfig.ReadInConfig(); err == nil {
		log.Debug("Loaded global config", "file", globalConfig.ConfigFileUsed())
	}
}

// initLogLevel applies the --loglevel flag to the global logger.
func initLogLevel() {
	level, err := log.ParseLevel(flagLogLevel)

	if err != nil {
		log.Warn("Unknown log level, using info", "loglevel", flagLogLevel)

		level = log.InfoLevel
	}

	log.SetLevel(level)
}

// loadState reads the persisted CLI state from its default location.
func loadState() (*drift.State, error) {
	path, err := drift.DefaultStatePath()

	if err != nil {
		return nil, fmt.Errorf("locating state file: %w", err)
	}

	return drift.LoadState(path)
}

// newClient builds a provider client from the flag token, the cached token,
// and the configured API endpoint, in that order of precedence.
func newClient(state *drift.State) (*drift.Client, error) {
	token := flagToken

	if token == "" {
		token = state.AccessToken
	}

	return drift.NewClient(globalConfig.GetString("api_url"), token)
}

// authErr rewrites a missing-authentication failure into the instruction
// the user actually needs.
func authErr(err error) error {
	if errors.Is(err, drift.ErrNotAuthenticated) {
		return errors.New("you are not authenticated, run `drift login` to authenticate")
	}

	return err
}
