package drift

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// DeployAPI is the slice of the provider API the deploy flow needs.
// *Client satisfies it.
type DeployAPI interface {
	GetProject(ctx context.Context, id string) (*Project, error)
	SearchProject(ctx context.Context, name string) (*Project, error)
	GetApp(ctx context.Context, id string) (*App, error)
	SearchApp(ctx context.Context, name, projectID string) (*App, error)
	CreateApp(ctx context.Context, name, description, projectID string) (*App, error)
	GetHostnames(ctx context.Context, appID, appName, hostname string) (*Hostnames, error)
	ValidateDeploymentArgs(ctx context.Context, req CreateDeploymentRequest) (string, error)
	CreateDeployment(ctx context.Context, req CreateDeploymentRequest) (string, error)
	GetDeploymentStatus(ctx context.Context, deploymentID string) (*DeploymentStatus, error)
}

// Prompter asks the user for input during interactive flows.
type Prompter interface {
	// Confirm asks a yes/no question, returning def on empty input
	Confirm(prompt string, def bool) (bool, error)
	// Ask reads a free-form answer, possibly empty
	Ask(prompt string) (string, error)
}

// ErrDeployCancelled is returned when the user declines a confirmation
// prompt during the deploy flow.
var ErrDeployCancelled = errors.New("deployment cancelled")

// DefaultPollInterval is the default delay between deployment status polls.
const DefaultPollInterval = 5 * time.Second

// DeployOptions are the CLI-supplied deployment settings. Set fields take
// precedence over the corresponding Config fields.
type DeployOptions struct {
	AppName     string
	Description string
	ProjectID   string
	ProjectName string
	AppID       string
	VMType      string
	Hostname    string
	EnvFile     string
	Strategy    string
	Regions     map[string]int
	Envs        []string
	Packages    []string

	// Interactive enables confirmation and creation prompts
	Interactive bool
	// Progress enables the upload progress bar
	Progress bool
}

// Deployer runs the sequential deploy flow: resolve identity, export,
// upload, observe. There is no retry at any step; every failure terminates
// the flow.
type Deployer struct {
	api      DeployAPI
	state    *State
	exporter Exporter
	prompt   Prompter

	// PollInterval is the delay between deployment status polls
	PollInterval time.Duration
}

// NewDeployer wires a deploy flow over the given provider API, persisted
// state, export capability, and prompter.
func NewDeployer(api DeployAPI, state *State, exporter Exporter, prompt Prompter) *Deployer {
	return &Deployer{
		api:          api,
		state:        state,
		exporter:     exporter,
		prompt:       prompt,
		PollInterval: DefaultPollInterval,
	}
}

// Deploy deploys the app described by conf with opts layered on top.
// On success it has printed a dashboard URL and followed the deployment to
// a terminal state; any failure is surfaced and nothing is retried.
func (d *Deployer) Deploy(ctx context.Context, conf Config, opts DeployOptions) error {
	// CLI values win over file values, field by field
	appName := strOr(opts.AppName, conf.Name)
	description := strOr(opts.Description, conf.Description)
	vmtype := strOr(opts.VMType, conf.VMType)
	hostname := strOr(opts.Hostname, conf.Hostname)
	projectID := strOr(opts.ProjectID, conf.Project)
	appID := strOr(opts.AppID, conf.AppID)
	strategy := strOr(opts.Strategy, conf.Strategy)

	regions := opts.Regions

	if len(regions) == 0 {
		regions = conf.Regions
	}

	packages := opts.Packages

	if len(packages) == 0 {
		packages = conf.Packages
	}

	if appName == "default" {
		return fmt.Errorf("app name %q looks like a placeholder, set real values in %s", appName, ConfigFileName)
	}

	if appName == "" && appID == "" {
		return errors.New("provide an app name or id for the deployed instance")
	}

	projectID, err := d.resolveProject(ctx, projectID, opts.ProjectName)

	if err != nil {
		return err
	}

	app, projectID, err := d.resolveApp(ctx, appName, appID, description, projectID, opts)

	if err != nil {
		return err
	}

	urls, err := d.api.GetHostnames(ctx, app.ID, app.Name, hostname)

	if err != nil {
		return err
	}

	if urls.Error != "" {
		return errors.New(urls.Error)
	}

	// The provider expects the domain it actually allocated, not the raw
	// requested hostname
	submitted := ""

	if hostname != "" {
		submitted = domainOf(urls.Hostname)
	}

	req := CreateDeploymentRequest{
		AppName:   app.Name,
		ProjectID: projectID,
		Regions:   regions,
		Hostname:  submitted,
		VMType:    vmtype,
		Strategy:  strategy,
		Packages:  packages,
		Progress:  opts.Progress,
	}

	msg, err := d.api.ValidateDeploymentArgs(ctx, req)

	if err != nil {
		return err
	}

	if msg != "success" {
		return errors.New(msg)
	}

	req.Secrets, err = resolveSecrets(conf, opts)

	if err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "drift-export-")

	if err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	// The export directory is removed on every exit path, before any
	// failure propagates
	defer os.RemoveAll(tmp)

	log.Debug("Exporting app", "dir", tmp, "backend", urls.Server, "frontend", urls.Hostname)

	if err := d.exporter.Export(ctx, tmp, urls.Server, urls.Hostname, ExportBackend, conf.IncludeDB); err != nil {
		return fmt.Errorf("unable to export backend: %w", err)
	}

	if err := d.exporter.Export(ctx, tmp, urls.Server, urls.Hostname, ExportFrontend, conf.IncludeDB); err != nil {
		return fmt.Errorf("unable to export frontend: %w", err)
	}

	req.ArtifactDir = tmp

	deploymentID, err := d.api.CreateDeployment(ctx, req)

	if err != nil {
		return err
	}

	dashboard := fmt.Sprintf("%s/project/%s/app/%s/", DashboardURL, projectID, app.ID)

	fmt.Printf("Deployment progress can be viewed at: %s\n", dashboard)
	fmt.Printf("You are now safe to exit. Follow along with:\n  drift apps status %s --watch\n", deploymentID)

	return WatchDeployment(ctx, d.api, deploymentID, d.PollInterval)
}

// resolveProject turns the supplied project identity into exactly one
// project id: explicit id, else name lookup, else the selected project.
// A deploy must always resolve to one project.
func (d *Deployer) resolveProject(ctx context.Context, projectID, projectName string) (string, error) {
	if projectID == "" && projectName != "" {
		p, err := d.api.SearchProject(ctx, projectName)

		if err != nil {
			return "", err
		}

		if p == nil {
			return "", fmt.Errorf("no project named %q", projectName)
		}

		projectID = p.ID
	}

	if projectID != "" {
		if _, err := d.api.GetProject(ctx, projectID); err != nil {
			return "", err
		}

		return projectID, nil
	}

	if d.state.SelectedProject != "" {
		return d.state.SelectedProject, nil
	}

	return "", errors.New("no project resolved, pass --project or run `drift project select`")
}

// resolveApp finds or creates the app to deploy, guarding against deploying
// into an unexpected project.
func (d *Deployer) resolveApp(ctx context.Context, appName, appID, description, projectID string, opts DeployOptions) (*App, string, error) {
	explicitProject := opts.ProjectID != "" || opts.ProjectName != ""

	var app *App
	var err error

	if appID != "" {
		app, err = d.api.GetApp(ctx, appID)

		if err != nil {
			return nil, "", fmt.Errorf("deployment failed: %w", err)
		}

		return app, strOr(projectID, app.ProjectID), nil
	}

	// An interactive deploy with no explicit project searches globally, so
	// an app living in another project is found and confirmed rather than
	// silently recreated
	scope := projectID

	if opts.Interactive && !explicitProject {
		scope = ""
	}

	app, err = d.api.SearchApp(ctx, appName, scope)

	if err != nil {
		return nil, "", fmt.Errorf("deployment failed: %w", err)
	}

	if app != nil {
		if opts.Interactive && !explicitProject && app.ProjectID != "" && app.ProjectID != d.state.SelectedProject {
			appProject, err := d.api.GetProject(ctx, app.ProjectID)

			projectName := "Unknown"

			if err == nil {
				projectName = appProject.Name
			}

			ok, err := d.prompt.Confirm(fmt.Sprintf("Deploy to app %q in project %q?", app.Name, projectName), true)

			if err != nil {
				return nil, "", err
			}

			if !ok {
				return nil, "", ErrDeployCancelled
			}

			projectID = app.ProjectID
		}

		return app, projectID, nil
	}

	if opts.Interactive {
		ok, err := d.prompt.Confirm(fmt.Sprintf("No app named %q found. Create a new app to deploy?", appName), true)

		if err != nil {
			return nil, "", err
		}

		if !ok {
			return nil, "", ErrDeployCancelled
		}

		if description == "" {
			description, err = d.prompt.Ask("App description (enter to skip)")

			if err != nil {
				return nil, "", err
			}
		}
	}

	app, err = d.api.CreateApp(ctx, appName, description, projectID)

	if err != nil {
		return nil, "", err
	}

	log.Info("Created app", "name", app.Name, "id", app.ID)

	return app, strOr(projectID, app.ProjectID), nil
}

// resolveSecrets materializes the deployment secrets, with a configured env
// file taking precedence over --env pairs.
func resolveSecrets(conf Config, opts DeployOptions) (map[string]string, error) {
	secrets, err := ParseEnvPairs(opts.Envs)

	if err != nil {
		return nil, err
	}

	if opts.EnvFile != "" {
		// Explicitly requested, so a missing file is an error
		if len(opts.Envs) > 0 {
			log.Warn("Both --envfile and --env given, the env file takes precedence")
		}

		return ReadEnvFile(opts.EnvFile)
	}

	if conf.EnvFile != "" {
		if _, err := os.Stat(conf.EnvFile); err == nil {
			if len(opts.Envs) > 0 {
				log.Warn("Both an env file and --env given, the env file takes precedence", "envfile", conf.EnvFile)
			}

			return ReadEnvFile(conf.EnvFile)
		}
	}

	return secrets, nil
}

// WatchDeployment polls a deployment until it reaches a terminal state,
// logging status transitions. A failed terminal state is an error.
func WatchDeployment(ctx context.Context, api DeployAPI, deploymentID string, interval time.Duration) error {
	last := ""

	for {
		status, err := api.GetDeploymentStatus(ctx, deploymentID)

		if err != nil {
			return err
		}

		if status.Status != last {
			log.Info("Deployment status", "status", status.Status, "message", status.Message)

			last = status.Status
		}

		if status.Terminal() {
			if status.Status == "failed" {
				return fmt.Errorf("deployment failed: %s", status.Message)
			}

			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// domainOf extracts the host from an allocated frontend URL, tolerating a
// bare domain.
func domainOf(raw string) string {
	u, err := url.Parse(raw)

	if err != nil || u.Host == "" {
		return raw
	}

	return u.Host
}

func strOr(a, b string) string {
	if a != "" {
		return a
	}

	return b
}
