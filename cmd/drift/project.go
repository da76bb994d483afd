package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"go.driftcloud.dev/drift"
)

// projectCmd represents the project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage hosting projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()

		if err != nil {
			return err
		}

		project, err := client.CreateProject(cmd.Context(), args[0])

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(project)
		}

		log.Info("Project created", "name", project.Name, "id", project.ID)

		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the projects you belong to",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()

		if err != nil {
			return err
		}

		projects, err := client.ListProjects(cmd.Context())

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(projects)
		}

		rows := make([][]string, 0, len(projects))

		for _, p := range projects {
			rows = append(rows, []string{p.ID, p.Name})
		}

		printTable([]string{"ID", "Name"}, rows)

		return nil
	},
}

var projectSelectCmd = &cobra.Command{
	Use:   "select <project-id>",
	Short: "Select the project deploys default to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, state, err := authedClient()

		if err != nil {
			return err
		}

		project, err := client.GetProject(cmd.Context(), args[0])

		if err != nil {
			return authErr(err)
		}

		state.SelectedProject = project.ID

		if err := state.Save(); err != nil {
			return err
		}

		log.Info("Project selected", "name", project.Name, "id", project.ID)

		return nil
	},
}

var projectSelectedCmd = &cobra.Command{
	Use:   "selected",
	Short: "Show the currently selected project",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, state, err := authedClient()

		if err != nil {
			return err
		}

		if state.SelectedProject == "" {
			return errors.New("no project selected, run `drift project select`")
		}

		project, err := client.GetProject(cmd.Context(), state.SelectedProject)

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(project)
		}

		fmt.Printf("%s (%s)\n", project.Name, project.ID)

		return nil
	},
}

var projectInviteCmd = &cobra.Command{
	Use:   "invite <role-id> <user-id>",
	Short: "Invite a user to the selected project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, projectID, err := projectScope()

		if err != nil {
			return err
		}

		if err := client.InviteUser(cmd.Context(), projectID, args[0], args[1]); err != nil {
			return authErr(err)
		}

		log.Info("User invited", "project", projectID, "user", args[1], "role", args[0])

		return nil
	},
}

var projectRolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the roles of the selected project",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, projectID, err := projectScope()

		if err != nil {
			return err
		}

		roles, err := client.ProjectRoles(cmd.Context(), projectID)

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(roles)
		}

		printRecords(roles)

		return nil
	},
}

var projectRolePermissionsCmd = &cobra.Command{
	Use:   "role-permissions <role-id>",
	Short: "List the permissions of a role in the selected project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, projectID, err := projectScope()

		if err != nil {
			return err
		}

		perms, err := client.RolePermissions(cmd.Context(), projectID, args[0])

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(perms)
		}

		printRecords(perms)

		return nil
	},
}

var projectUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the users of the selected project",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, projectID, err := projectScope()

		if err != nil {
			return err
		}

		users, err := client.ProjectUsers(cmd.Context(), projectID)

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(users)
		}

		printRecords(users)

		return nil
	},
}

// authedClient loads the persisted state and builds a client from it.
func authedClient() (*drift.Client, *drift.State, error) {
	state, err := loadState()

	if err != nil {
		return nil, nil, err
	}

	client, err := newClient(state)

	if err != nil {
		return nil, nil, err
	}

	return client, state, nil
}

var flagProject string

// projectScope resolves the project the command operates on: the --project
// flag, else the selected project.
func projectScope() (*drift.Client, *drift.State, string, error) {
	client, state, err := authedClient()

	if err != nil {
		return nil, nil, "", err
	}

	projectID := flagProject

	if projectID == "" {
		projectID = state.SelectedProject
	}

	if projectID == "" {
		return nil, nil, "", errors.New("no project resolved, pass --project or run `drift project select`")
	}

	return client, state, projectID, nil
}

func init() {
	rootCmd.AddCommand(projectCmd)

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectSelectCmd)
	projectCmd.AddCommand(projectSelectedCmd)
	projectCmd.AddCommand(projectInviteCmd)
	projectCmd.AddCommand(projectRolesCmd)
	projectCmd.AddCommand(projectRolePermissionsCmd)
	projectCmd.AddCommand(projectUsersCmd)

	projectCmd.PersistentFlags().StringVar(&flagProject, "project", "", "The id of the project to operate on")
}
