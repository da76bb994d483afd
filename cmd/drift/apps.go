package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"go.driftcloud.dev/drift"
)

var appsOpts struct {
	project string
	watch   bool
	source  string
}

// appsCmd represents the apps command
var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Inspect deployed apps",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the apps in a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, state, err := authedClient()

		if err != nil {
			return err
		}

		projectID := appsOpts.project

		if projectID == "" {
			projectID = state.SelectedProject
		}

		apps, err := client.ListApps(cmd.Context(), projectID)

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(apps)
		}

		rows := make([][]string, 0, len(apps))

		for _, a := range apps {
			rows = append(rows, []string{a.ID, a.Name, a.Description})
		}

		printTable([]string{"ID", "Name", "Description"}, rows)

		return nil
	},
}

var appsStatusCmd = &cobra.Command{
	Use:   "status <deployment-id>",
	Short: "Show the status of a deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()

		if err != nil {
			return err
		}

		if appsOpts.watch {
			return authErr(drift.WatchDeployment(cmd.Context(), client, args[0], drift.DefaultPollInterval))
		}

		status, err := client.GetDeploymentStatus(cmd.Context(), args[0])

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(status)
		}

		fmt.Printf("%s: %s\n", status.Status, status.Message)

		return nil
	},
}

var appsLogsCmd = &cobra.Command{
	Use:   "logs <deployment-id>",
	Short: "Stream the logs of a deployment",
	Long: `Logs streams the backend and frontend logs of a deployment, merged onto
one output with a colored prefix per source. Pass --source to follow a
single source instead.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()

		if err != nil {
			return err
		}

		sources := []string{"backend", "frontend"}

		if appsOpts.source != "" {
			sources = []string{appsOpts.source}
		}

		feeds := make(map[string]io.Reader, len(sources))

		for _, source := range sources {
			rc, err := client.DeploymentLogs(cmd.Context(), args[0], source)

			if err != nil {
				return authErr(err)
			}

			defer rc.Close()

			feeds[source] = rc
		}

		mux := drift.NewLogMux(cmd.Context(), os.Stdout)

		return mux.Follow(cmd.Context(), feeds)
	},
}

func init() {
	rootCmd.AddCommand(appsCmd)

	appsCmd.AddCommand(appsListCmd)
	appsCmd.AddCommand(appsStatusCmd)
	appsCmd.AddCommand(appsLogsCmd)

	appsListCmd.Flags().StringVar(&appsOpts.project, "project", "", "The id of the project to list apps from")
	appsStatusCmd.Flags().BoolVar(&appsOpts.watch, "watch", false, "Poll until the deployment reaches a terminal state")
	appsLogsCmd.Flags().StringVar(&appsOpts.source, "source", "", "Follow a single log source (backend or frontend)")
}
