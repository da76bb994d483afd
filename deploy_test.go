package drift_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.driftcloud.dev/drift"
)

type fakeAPI struct {
	projects map[string]*drift.Project
	apps     map[string]*drift.App

	hostnames   drift.Hostnames
	validateMsg string
	statuses    []drift.DeploymentStatus

	createdApp   *drift.App
	deployment   drift.CreateDeploymentRequest
	deployCalled bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		projects:    map[string]*drift.Project{},
		apps:        map[string]*drift.App{},
		hostnames:   drift.Hostnames{Server: "https://api.mail.driftcloud.app", Hostname: "https://mail.driftcloud.app"},
		validateMsg: "success",
		statuses:    []drift.DeploymentStatus{{Status: "completed"}},
	}
}

func (f *fakeAPI) GetProject(ctx context.Context, id string) (*drift.Project, error) {
	p, ok := f.projects[id]

	if !ok {
		return nil, &drift.APIError{StatusCode: 404, Detail: "no such project"}
	}

	return p, nil
}

func (f *fakeAPI) SearchProject(ctx context.Context, name string) (*drift.Project, error) {
	for _, p := range f.projects {
		if p.Name == name {
			return p, nil
		}
	}

	return nil, nil
}

func (f *fakeAPI) GetApp(ctx context.Context, id string) (*drift.App, error) {
	a, ok := f.apps[id]

	if !ok {
		return nil, &drift.APIError{StatusCode: 404, Detail: "no such app"}
	}

	return a, nil
}

func (f *fakeAPI) SearchApp(ctx context.Context, name, projectID string) (*drift.App, error) {
	for _, a := range f.apps {
		if a.Name != name {
			continue
		}

		if projectID != "" && a.ProjectID != projectID {
			continue
		}

		return a, nil
	}

	return nil, nil
}

func (f *fakeAPI) CreateApp(ctx context.Context, name, description, projectID string) (*drift.App, error) {
	a := &drift.App{ID: "app-new", Name: name, Description: description, ProjectID: projectID}

	f.apps[a.ID] = a
	f.createdApp = a

	return a, nil
}

func (f *fakeAPI) GetHostnames(ctx context.Context, appID, appName, hostname string) (*drift.Hostnames, error) {
	h := f.hostnames

	return &h, nil
}

func (f *fakeAPI) ValidateDeploymentArgs(ctx context.Context, req drift.CreateDeploymentRequest) (string, error) {
	return f.validateMsg, nil
}

func (f *fakeAPI) CreateDeployment(ctx context.Context, req drift.CreateDeploymentRequest) (string, error) {
	f.deployCalled = true
	f.deployment = req

	return "dep-1", nil
}

func (f *fakeAPI) GetDeploymentStatus(ctx context.Context, deploymentID string) (*drift.DeploymentStatus, error) {
	s := f.statuses[0]

	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}

	return &s, nil
}

type fakePrompter struct {
	confirm bool
	answer  string

	confirmed []string
}

func (p *fakePrompter) Confirm(prompt string, def bool) (bool, error) {
	p.confirmed = append(p.confirmed, prompt)

	return p.confirm, nil
}

func (p *fakePrompter) Ask(prompt string) (string, error) {
	return p.answer, nil
}

// recordingExporter drops a marker file so tests can locate the export
// directory after the flow finishes.
type recordingExporter struct {
	dirs []string
	err  error
}

func (e *recordingExporter) Export(ctx context.Context, outDir, backendURL, frontendURL string, target drift.ExportTarget, includeDB bool) error {
	e.dirs = append(e.dirs, outDir)

	if e.err != nil {
		return e.err
	}

	name := "backend.zip"

	if target == drift.ExportFrontend {
		name = "frontend.zip"
	}

	return os.WriteFile(filepath.Join(outDir, name), []byte("zip"), 0644)
}

func newDeployer(api drift.DeployAPI, state *drift.State, exporter drift.Exporter, prompt drift.Prompter) *drift.Deployer {
	d := drift.NewDeployer(api, state, exporter, prompt)

	d.PollInterval = 0

	return d
}

func TestDeploy(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}

	exporter := &recordingExporter{}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, exporter, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{
		"name":    "mail",
		"vmtype":  "c1m1",
		"regions": map[string]any{"fra": 1},
	})

	require.NoError(t, err)

	err = d.Deploy(context.Background(), conf, drift.DeployOptions{})

	require.NoError(t, err)

	assert.True(t, api.deployCalled)
	assert.Equal(t, "mail", api.deployment.AppName)
	assert.Equal(t, "p1", api.deployment.ProjectID)
	assert.Equal(t, map[string]int{"fra": 1}, api.deployment.Regions)

	// Two export passes into the same directory, removed afterwards
	require.Len(t, exporter.dirs, 2)

	assert.Equal(t, exporter.dirs[0], exporter.dirs[1])
	assert.NoDirExists(t, exporter.dirs[0])
}

func TestDeployOptionsWinOverConfig(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail-v2", ProjectID: "p1"}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{
		"name":   "mail",
		"vmtype": "c1m1",
	})

	require.NoError(t, err)

	opts := drift.DeployOptions{
		AppName: "mail-v2",
		VMType:  "c2m4",
		Regions: map[string]int{"sjc": 3},
	}

	require.NoError(t, d.Deploy(context.Background(), conf, opts))

	assert.Equal(t, "mail-v2", api.deployment.AppName)
	assert.Equal(t, "c2m4", api.deployment.VMType)
	assert.Equal(t, map[string]int{"sjc": 3}, api.deployment.Regions)
}

func TestDeployNoProject(t *testing.T) {
	api := newFakeAPI()

	d := newDeployer(api, &drift.State{}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	err = d.Deploy(context.Background(), conf, drift.DeployOptions{})

	require.Error(t, err)

	assert.Contains(t, err.Error(), "no project resolved")
	assert.False(t, api.deployCalled)
}

func TestDeployPlaceholderName(t *testing.T) {
	d := newDeployer(newFakeAPI(), &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "default"})

	require.NoError(t, err)

	err = d.Deploy(context.Background(), conf, drift.DeployOptions{})

	require.Error(t, err)

	assert.Contains(t, err.Error(), "placeholder")
}

func TestDeployCreatesMissingApp(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}

	prompt := &fakePrompter{confirm: true, answer: "a mail app"}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, prompt)

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	opts := drift.DeployOptions{Interactive: true}

	require.NoError(t, d.Deploy(context.Background(), conf, opts))

	require.NotNil(t, api.createdApp)

	assert.Equal(t, "mail", api.createdApp.Name)
	assert.Equal(t, "a mail app", api.createdApp.Description)
}

func TestDeployDeclinedCreation(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{confirm: false})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	err = d.Deploy(context.Background(), conf, drift.DeployOptions{Interactive: true})

	require.ErrorIs(t, err, drift.ErrDeployCancelled)

	assert.False(t, api.deployCalled)
}

func TestDeployCrossProjectConfirm(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.projects["p2"] = &drift.Project{ID: "p2", Name: "work"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p2"}

	prompt := &fakePrompter{confirm: true}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, prompt)

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	require.NoError(t, d.Deploy(context.Background(), conf, drift.DeployOptions{Interactive: true}))

	require.Len(t, prompt.confirmed, 1)

	assert.Contains(t, prompt.confirmed[0], "work")
	assert.Equal(t, "p2", api.deployment.ProjectID)
}

func TestDeployExportFailureCleansUp(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}

	exporter := &recordingExporter{err: errors.New("export blew up")}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, exporter, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	err = d.Deploy(context.Background(), conf, drift.DeployOptions{})

	require.Error(t, err)

	assert.Contains(t, err.Error(), "unable to export backend")
	assert.False(t, api.deployCalled)

	require.Len(t, exporter.dirs, 1)

	// The temp directory is gone before the error surfaces
	assert.NoDirExists(t, exporter.dirs[0])
}

func TestDeployCustomHostname(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}
	api.hostnames = drift.Hostnames{
		Server:   "https://api.mail.driftcloud.app",
		Hostname: "https://mail.example.com",
	}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	opts := drift.DeployOptions{Hostname: "mail.example.com"}

	require.NoError(t, d.Deploy(context.Background(), conf, opts))

	// The upload carries the domain of the allocated frontend URL
	assert.Equal(t, "mail.example.com", api.deployment.Hostname)
}

func TestDeployNoCustomHostname(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	require.NoError(t, d.Deploy(context.Background(), conf, drift.DeployOptions{}))

	assert.Empty(t, api.deployment.Hostname)
}

func TestDeployHostnameError(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}
	api.hostnames = drift.Hostnames{Error: "hostname already taken"}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	err = d.Deploy(context.Background(), conf, drift.DeployOptions{})

	require.EqualError(t, err, "hostname already taken")
}

func TestDeployValidationRejected(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}
	api.validateMsg = "vmtype not available in region fra"

	exporter := &recordingExporter{}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, exporter, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	err = d.Deploy(context.Background(), conf, drift.DeployOptions{})

	require.EqualError(t, err, "vmtype not available in region fra")

	// Rejected before any export happens
	assert.Empty(t, exporter.dirs)
}

func TestDeployFailedTerminalState(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}
	api.statuses = []drift.DeploymentStatus{
		{Status: "uploading"},
		{Status: "failed", Message: "backend crashed on boot"},
	}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	err = d.Deploy(context.Background(), conf, drift.DeployOptions{})

	require.Error(t, err)

	assert.Contains(t, err.Error(), "backend crashed on boot")
}

func TestDeploySecretsFromEnvFile(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}

	envfile := writeFile(t, ".env.prod", "API_KEY=abc\nDEBUG=false\n")

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{"name": "mail"})

	require.NoError(t, err)

	opts := drift.DeployOptions{
		EnvFile: envfile,
		Envs:    []string{"API_KEY=ignored"},
	}

	require.NoError(t, d.Deploy(context.Background(), conf, opts))

	assert.Equal(t, map[string]string{"API_KEY": "abc", "DEBUG": "false"}, api.deployment.Secrets)
}

func TestDeploySecretsFromConfigEnvFile(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}

	envfile := writeFile(t, ".env", "API_KEY=from-file\n")

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{
		"name":    "mail",
		"envfile": envfile,
	})

	require.NoError(t, err)

	// The configured env file wins over --env pairs when it exists on disk
	opts := drift.DeployOptions{Envs: []string{"API_KEY=from-flag", "EXTRA=x"}}

	require.NoError(t, d.Deploy(context.Background(), conf, opts))

	assert.Equal(t, map[string]string{"API_KEY": "from-file"}, api.deployment.Secrets)
}

func TestDeploySecretsConfigEnvFileAbsent(t *testing.T) {
	api := newFakeAPI()

	api.projects["p1"] = &drift.Project{ID: "p1", Name: "personal"}
	api.apps["a1"] = &drift.App{ID: "a1", Name: "mail", ProjectID: "p1"}

	d := newDeployer(api, &drift.State{SelectedProject: "p1"}, &recordingExporter{}, &fakePrompter{})

	conf, err := drift.NewConfig(map[string]any{
		"name":    "mail",
		"envfile": filepath.Join(t.TempDir(), "missing.env"),
	})

	require.NoError(t, err)

	// A configured env file that does not exist is skipped, not an error
	opts := drift.DeployOptions{Envs: []string{"API_KEY=from-flag"}}

	require.NoError(t, d.Deploy(context.Background(), conf, opts))

	assert.Equal(t, map[string]string{"API_KEY": "from-flag"}, api.deployment.Secrets)
}
