package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"go.driftcloud.dev/drift"
)

var secretsOpts struct {
	reboot  bool
	envfile string
	envs    []string
}

// secretsCmd represents the secrets command
var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage the secrets of a deployed app",
}

var secretsListCmd = &cobra.Command{
	Use:   "list [app-id]",
	Short: "List the names of the secrets set on an app",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, appID, err := secretsClient(args)

		if err != nil {
			return err
		}

		keys, err := client.GetSecrets(cmd.Context(), appID)

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(keys)
		}

		rows := make([][]string, 0, len(keys))

		for _, k := range keys {
			rows = append(rows, []string{k})
		}

		printTable([]string{"Name"}, rows)

		return nil
	},
}

var secretsUpdateCmd = &cobra.Command{
	Use:   "update [app-id]",
	Short: "Set secrets on an app from --env pairs or an env file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, appID, err := secretsClient(args)

		if err != nil {
			return err
		}

		secrets, err := collectSecrets()

		if err != nil {
			return err
		}

		if len(secrets) == 0 {
			return errors.New("provide secrets with --env or --envfile")
		}

		if err := client.UpdateSecrets(cmd.Context(), appID, secrets, secretsOpts.reboot); err != nil {
			return authErr(err)
		}

		log.Info("Secrets updated", "app", appID, "count", len(secrets))

		return nil
	},
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete <key> [app-id]",
	Short: "Delete a secret from an app",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, appID, err := secretsClient(args[1:])

		if err != nil {
			return err
		}

		if err := client.DeleteSecret(cmd.Context(), appID, args[0], secretsOpts.reboot); err != nil {
			return authErr(err)
		}

		log.Info("Secret deleted", "app", appID, "key", args[0])

		return nil
	},
}

// secretsClient resolves the target app id from the argument or the local
// deployment config, and builds an authenticated client for it.
func secretsClient(args []string) (*drift.Client, string, error) {
	appID := ""

	if len(args) > 0 {
		appID = args[0]
	}

	if appID == "" {
		conf, err := drift.LoadAnyOrDefault(".", "")

		if err != nil {
			return nil, "", err
		}

		appID = conf.AppID
	}

	if appID == "" {
		return nil, "", fmt.Errorf("no app id given and none found in %s", drift.ConfigFileName)
	}

	state, err := loadState()

	if err != nil {
		return nil, "", err
	}

	client, err := newClient(state)

	if err != nil {
		return nil, "", err
	}

	return client, appID, nil
}

// collectSecrets merges --env pairs with the contents of --envfile, the file
// winning when both are given.
func collectSecrets() (map[string]string, error) {
	secrets, err := drift.ParseEnvPairs(secretsOpts.envs)

	if err != nil {
		return nil, err
	}

	if secretsOpts.envfile == "" {
		return secrets, nil
	}

	if len(secretsOpts.envs) > 0 {
		log.Warn("Both --envfile and --env given, the env file takes precedence")
	}

	return drift.ReadEnvFile(secretsOpts.envfile)
}

func init() {
	rootCmd.AddCommand(secretsCmd)

	secretsCmd.AddCommand(secretsListCmd)
	secretsCmd.AddCommand(secretsUpdateCmd)
	secretsCmd.AddCommand(secretsDeleteCmd)

	secretsCmd.PersistentFlags().BoolVar(&secretsOpts.reboot, "reboot", false, "Reboot the app after changing its secrets")

	secretsUpdateCmd.Flags().StringArrayVar(&secretsOpts.envs, "env", nil, "Secrets to set, as KEY=VALUE pairs")
	secretsUpdateCmd.Flags().StringVar(&secretsOpts.envfile, "envfile", "", "A file of KEY=VALUE pairs to set as secrets")
}
