package main

import (
	"github.com/spf13/cobra"

	"go.driftcloud.dev/drift"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the Drift Cloud hosting service",
	Long: `Authenticates with the Drift Cloud hosting service.

If no valid cached token exists a browser window is opened on the login page
and the command waits for the login to complete.`,
	Example: "drift login",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadState()

		if err != nil {
			return err
		}

		if flagToken != "" {
			state.AccessToken = flagToken
		}

		client, err := newClient(state)

		if err != nil {
			return err
		}

		info, err := drift.Login(cmd.Context(), client, state)

		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(info)
		}

		return nil
	},
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Log out of the Drift Cloud hosting service",
	Example: "drift logout",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadState()

		if err != nil {
			return err
		}

		if err := drift.Logout(state); err != nil {
			return err
		}

		cmd.Println("Successfully logged out.")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
