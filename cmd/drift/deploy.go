package main

import (
	"github.com/spf13/cobra"

	"go.driftcloud.dev/drift"
)

var deployOpts struct {
	name        string
	description string
	appID       string
	projectID   string
	projectName string
	vmtype      string
	hostname    string
	envfile     string
	strategy    string
	configPath  string
	profile     string
	regions     map[string]int
	envs        []string
}

// deployCmd represents the deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the app in the current directory",
	Long: `Deploy exports the app in the current directory and uploads it to the
Drift Cloud hosting service.

Deployment settings are read from drift.yml, or from the [tool.drift] table
of project.toml when no drift.yml exists. Command line flags take precedence
over file values, field by field.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadDeployConfig()

		if err != nil {
			return err
		}

		state, err := loadState()

		if err != nil {
			return err
		}

		client, err := newClient(state)

		if err != nil {
			return err
		}

		exporter, err := newExporter()

		if err != nil {
			return err
		}

		deployer := drift.NewDeployer(client, state, exporter, newPrompter())

		opts := drift.DeployOptions{
			AppName:     deployOpts.name,
			Description: deployOpts.description,
			ProjectID:   deployOpts.projectID,
			ProjectName: deployOpts.projectName,
			AppID:       deployOpts.appID,
			VMType:      deployOpts.vmtype,
			Hostname:    deployOpts.hostname,
			EnvFile:     deployOpts.envfile,
			Strategy:    deployOpts.strategy,
			Regions:     deployOpts.regions,
			Envs:        deployOpts.envs,
			Interactive: flagInteractive,
			Progress:    !flagJSON,
		}

		return authErr(deployer.Deploy(cmd.Context(), conf, opts))
	},
}

// loadDeployConfig loads the deployment config named by --config, or falls
// back to whatever the current directory provides.
func loadDeployConfig() (drift.Config, error) {
	if deployOpts.configPath != "" {
		return drift.LoadConfig(deployOpts.configPath, deployOpts.profile)
	}

	return drift.LoadAnyOrDefault(".", deployOpts.profile)
}

func init() {
	rootCmd.AddCommand(deployCmd)

	f := deployCmd.Flags()

	f.StringVar(&deployOpts.name, "name", "", "The name of the app to deploy")
	f.StringVar(&deployOpts.description, "description", "", "The description of the app")
	f.StringVar(&deployOpts.appID, "app-id", "", "The id of the app to deploy to")
	f.StringVar(&deployOpts.projectID, "project", "", "The id of the project to deploy into")
	f.StringVar(&deployOpts.projectName, "project-name", "", "The name of the project to deploy into")
	f.StringVar(&deployOpts.vmtype, "vmtype", "", "The VM type to run the app on")
	f.StringVar(&deployOpts.hostname, "hostname", "", "The hostname to serve the app on")
	f.StringVar(&deployOpts.envfile, "envfile", "", "A file of KEY=VALUE pairs to set as app secrets")
	f.StringVar(&deployOpts.strategy, "strategy", "", "The rollout strategy for the deployment")
	f.StringVar(&deployOpts.configPath, "config", "", "The path of the deployment config file")
	f.StringVar(&deployOpts.profile, "profile", "", "The config profile to deploy with")
	f.StringToIntVar(&deployOpts.regions, "region", nil, "Regions to deploy to, as region=count pairs")
	f.StringArrayVar(&deployOpts.envs, "env", nil, "Secrets to set, as KEY=VALUE pairs")
}
