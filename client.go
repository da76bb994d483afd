package drift

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// DefaultBaseURL is the production provider API endpoint.
const DefaultBaseURL = "https://api.driftcloud.dev"

// DashboardURL is the provider web UI, used for post-deploy links.
const DashboardURL = "https://app.driftcloud.dev"

// Client talks to the provider REST API. All requests carry the bearer
// token; all bodies are JSON except the deployment artifact upload.
//
// Timeout and cancellation semantics are delegated to the underlying HTTP
// client and the caller's context. The client never retries.
type Client struct {
	base  *url.URL
	token string
	httpc *http.Client
}

// NewClient returns a Client for the API at baseURL authenticating with
// token. An empty token is allowed for the pre-login auth endpoints.
func NewClient(baseURL string, token string) (*Client, error) {
	base, err := url.Parse(baseURL)

	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	return &Client{
		base:  base,
		token: token,
		httpc: &http.Client{},
	}, nil
}

// SetToken replaces the bearer token for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Project is a provider project record.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// App is a provider app record.
type App struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
}

// Hostnames is the provider's hostname allocation for an app. Error is set
// when the provider declines the request.
type Hostnames struct {
	Server   string `json:"server"`
	Hostname string `json:"hostname"`
	Error    string `json:"error"`
}

// DeploymentStatus is one observation of a deployment's progress.
type DeploymentStatus struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Terminal reports whether the deployment has reached a final state.
func (s DeploymentStatus) Terminal() bool {
	switch s.Status {
	case "completed", "failed":
		return true
	}

	return false
}

// LoginRequest is a pending browser login: the URL the user visits and the
// id the CLI polls for the resulting token.
type LoginRequest struct {
	ID  string `json:"request_id"`
	URL string `json:"url"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.base.JoinPath(path)

	if query != nil {
		u.RawQuery = query.Encode()
	}

	var r io.Reader

	if body != nil {
		raw, err := json.Marshal(body)

		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}

		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)

	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)

	if err != nil {
		return fmt.Errorf("calling provider: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthenticated
	}

	raw, err := io.ReadAll(resp.Body)

	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// errorDetail extracts the JSON "detail" field from an error body, falling
// back to the raw text.
func errorDetail(raw []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}

	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != "" {
		return body.Detail
	}

	return strings.TrimSpace(string(raw))
}

// BeginLogin asks the provider for a browser login URL and polling id.
func (c *Client) BeginLogin(ctx context.Context) (*LoginRequest, error) {
	var req LoginRequest

	if err := c.do(ctx, http.MethodPost, "/v1/auth/request", nil, map[string]any{}, &req); err != nil {
		return nil, err
	}

	return &req, nil
}

// PollToken waits for the user to complete the browser login, asking the
// provider for the token at the given interval until it is issued or ctx is
// done. A not-ready response keeps polling; any other failure is terminal.
func (c *Client) PollToken(ctx context.Context, requestID string, interval time.Duration) (string, error) {
	query := url.Values{"request_id": []string{requestID}}

	for {
		var resp struct {
			AccessToken string `json:"access_token"`
		}

		err := c.do(ctx, http.MethodGet, "/v1/auth/token", query, nil, &resp)

		if err == nil && resp.AccessToken != "" {
			return resp.AccessToken, nil
		}

		var apiErr *APIError

		if err != nil && !(errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound) {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// ValidateToken checks the current token and returns the provider's user
// info for it.
func (c *Client) ValidateToken(ctx context.Context) (map[string]any, error) {
	if c.token == "" {
		return nil, ErrNotAuthenticated
	}

	var info map[string]any

	if err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, nil, &info); err != nil {
		return nil, err
	}

	return info, nil
}

// CreateProject creates a project owned by the authenticated user.
func (c *Client) CreateProject(ctx context.Context, name string) (*Project, error) {
	var p Project

	body := map[string]any{"name": name}

	if err := c.do(ctx, http.MethodPost, "/v1/projects", nil, body, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project

	if err := c.do(ctx, http.MethodGet, "/v1/projects/"+id, nil, nil, &p); err != nil {
		return nil, err
	}

	return &p, nil
}

// SearchProject looks a project up by name. A project that does not exist
// is reported as nil, not an error.
func (c *Client) SearchProject(ctx context.Context, name string) (*Project, error) {
	query := url.Values{"name": []string{name}}

	var matches []Project

	if err := c.do(ctx, http.MethodGet, "/v1/projects/search", query, nil, &matches); err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, nil
	}

	return &matches[0], nil
}

// ListProjects returns the projects visible to the authenticated user.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project

	if err := c.do(ctx, http.MethodGet, "/v1/projects", nil, nil, &projects); err != nil {
		return nil, err
	}

	return projects, nil
}

// InviteUser grants a user a role on a project.
func (c *Client) InviteUser(ctx context.Context, projectID, roleID, userID string) error {
	body := map[string]any{"role_id": roleID, "user_id": userID}

	return c.do(ctx, http.MethodPost, "/v1/projects/"+projectID+"/invite", nil, body, nil)
}

// ProjectRoles lists the roles defined on a project.
func (c *Client) ProjectRoles(ctx context.Context, projectID string) ([]map[string]any, error) {
	var roles []map[string]any

	if err := c.do(ctx, http.MethodGet, "/v1/projects/"+projectID+"/roles", nil, nil, &roles); err != nil {
		return nil, err
	}

	return roles, nil
}

// RolePermissions lists the permissions of one role on a project.
func (c *Client) RolePermissions(ctx context.Context, projectID, roleID string) ([]map[string]any, error) {
	var perms []map[string]any

	path := "/v1/projects/" + projectID + "/roles/" + roleID + "/permissions"

	if err := c.do(ctx, http.MethodGet, path, nil, nil, &perms); err != nil {
		return nil, err
	}

	return perms, nil
}

// ProjectUsers lists the users of a project.
func (c *Client) ProjectUsers(ctx context.Context, projectID string) ([]map[string]any, error) {
	var users []map[string]any

	if err := c.do(ctx, http.MethodGet, "/v1/projects/"+projectID+"/users", nil, nil, &users); err != nil {
		return nil, err
	}

	return users, nil
}

// CreateApp registers a new app under a project. An empty projectID lets
// the provider place the app in the user's default project.
func (c *Client) CreateApp(ctx context.Context, name, description, projectID string) (*App, error) {
	var app App

	body := map[string]any{
		"name":        name,
		"description": description,
	}

	if projectID != "" {
		body["project_id"] = projectID
	}

	if err := c.do(ctx, http.MethodPost, "/v1/apps", nil, body, &app); err != nil {
		return nil, err
	}

	return &app, nil
}

// GetApp fetches an app by id.
func (c *Client) GetApp(ctx context.Context, id string) (*App, error) {
	var app App

	if err := c.do(ctx, http.MethodGet, "/v1/apps/"+id, nil, nil, &app); err != nil {
		return nil, err
	}

	return &app, nil
}

// SearchApp looks an app up by name, optionally scoped to a project. An app
// that does not exist is reported as nil, not an error.
func (c *Client) SearchApp(ctx context.Context, name, projectID string) (*App, error) {
	query := url.Values{"name": []string{name}}

	if projectID != "" {
		query.Set("project_id", projectID)
	}

	var matches []App

	if err := c.do(ctx, http.MethodGet, "/v1/apps/search", query, nil, &matches); err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, nil
	}

	return &matches[0], nil
}

// ListApps returns the apps in a project, or all visible apps when
// projectID is empty.
func (c *Client) ListApps(ctx context.Context, projectID string) ([]App, error) {
	var query url.Values

	if projectID != "" {
		query = url.Values{"project_id": []string{projectID}}
	}

	var apps []App

	if err := c.do(ctx, http.MethodGet, "/v1/apps", query, nil, &apps); err != nil {
		return nil, err
	}

	return apps, nil
}

// GetHostnames asks the provider for the backend and frontend hostnames of
// an app, optionally requesting a custom frontend hostname.
func (c *Client) GetHostnames(ctx context.Context, appID, appName, hostname string) (*Hostnames, error) {
	var urls Hostnames

	body := map[string]any{"app_name": appName}

	if hostname != "" {
		body["hostname"] = hostname
	}

	if err := c.do(ctx, http.MethodPost, "/v1/apps/"+appID+"/hostnames", nil, body, &urls); err != nil {
		return nil, err
	}

	return &urls, nil
}

// ValidateDeploymentArgs asks the provider to validate a deployment request
// ahead of the upload. The response message is "success" when acceptable.
func (c *Client) ValidateDeploymentArgs(ctx context.Context, req CreateDeploymentRequest) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}

	body := map[string]any{
		"app_name":   req.AppName,
		"project_id": req.ProjectID,
		"regions":    req.Regions,
		"vmtype":     req.VMType,
		"hostname":   req.Hostname,
	}

	if err := c.do(ctx, http.MethodPost, "/v1/deployments/validate", nil, body, &resp); err != nil {
		return "", err
	}

	return resp.Message, nil
}

// CreateDeploymentRequest carries everything the provider needs to launch a
// deployment: the resolved identity and settings plus the directory of
// exported artifact archives to upload.
type CreateDeploymentRequest struct {
	AppName     string
	ProjectID   string
	Regions     map[string]int
	Hostname    string
	VMType      string
	Strategy    string
	Packages    []string
	Secrets     map[string]string
	ArtifactDir string

	// Progress draws an upload progress bar to stderr
	Progress bool
}

// CreateDeployment uploads the exported artifacts and deployment settings
// as one multipart request and returns the new deployment id. A "failed"
// status in the response body is a domain-level failure and is surfaced
// verbatim.
func (c *Client) CreateDeployment(ctx context.Context, req CreateDeploymentRequest) (string, error) {
	archives, err := filepath.Glob(filepath.Join(req.ArtifactDir, "*.zip"))

	if err != nil {
		return "", fmt.Errorf("listing artifacts: %w", err)
	}

	if len(archives) == 0 {
		return "", fmt.Errorf("no artifact archives found in %s", req.ArtifactDir)
	}

	sort.Strings(archives)

	meta, err := json.Marshal(map[string]any{
		"app_name":   req.AppName,
		"project_id": req.ProjectID,
		"regions":    req.Regions,
		"hostname":   req.Hostname,
		"vmtype":     req.VMType,
		"strategy":   req.Strategy,
		"packages":   req.Packages,
		"secrets":    req.Secrets,
	})

	if err != nil {
		return "", fmt.Errorf("encoding deployment settings: %w", err)
	}

	var total int64

	for _, archive := range archives {
		info, err := os.Stat(archive)

		if err != nil {
			return "", fmt.Errorf("reading artifact: %w", err)
		}

		total += info.Size()
	}

	progressOut := io.Writer(os.Stderr)

	if !req.Progress {
		progressOut = io.Discard
	}

	progress := mpb.New(mpb.WithWidth(40), mpb.WithOutput(progressOut))

	bar := progress.New(total,
		mpb.BarStyle(),
		mpb.PrependDecorators(
			decor.Name("uploading", decor.WCSyncSpace),
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	pr, pw := io.Pipe()

	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeDeploymentForm(form, meta, archives, bar))
	}()

	u := c.base.JoinPath("/v1/deployments")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), pr)

	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Detail string `json:"detail"`
	}

	if err := c.send(httpReq, &resp); err != nil {
		bar.Abort(true)

		return "", err
	}

	progress.Wait()

	if resp.Status == "failed" {
		return "", fmt.Errorf("deployment failed: %s", resp.Detail)
	}

	return resp.ID, nil
}

func writeDeploymentForm(form *multipart.Writer, meta []byte, archives []string, bar *mpb.Bar) error {
	if err := form.WriteField("payload", string(meta)); err != nil {
		return fmt.Errorf("writing settings part: %w", err)
	}

	for _, archive := range archives {
		part, err := form.CreateFormFile("files", filepath.Base(archive))

		if err != nil {
			return fmt.Errorf("creating artifact part: %w", err)
		}

		f, err := os.Open(archive)

		if err != nil {
			return fmt.Errorf("opening artifact: %w", err)
		}

		_, err = io.Copy(part, bar.ProxyReader(f))

		f.Close()

		if err != nil {
			return fmt.Errorf("uploading %s: %w", filepath.Base(archive), err)
		}
	}

	return form.Close()
}

// GetDeploymentStatus fetches the current status of a deployment.
func (c *Client) GetDeploymentStatus(ctx context.Context, deploymentID string) (*DeploymentStatus, error) {
	var status DeploymentStatus

	if err := c.do(ctx, http.MethodGet, "/v1/deployments/"+deploymentID+"/status", nil, nil, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// DeploymentLogs opens a streamed log feed for one source ("backend" or
// "frontend") of a deployment. The caller owns the returned reader.
func (c *Client) DeploymentLogs(ctx context.Context, deploymentID, source string) (io.ReadCloser, error) {
	u := c.base.JoinPath("/v1/deployments/" + deploymentID + "/logs")
	u.RawQuery = url.Values{"source": []string{source}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)

	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)

	if err != nil {
		return nil, fmt.Errorf("calling provider: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()

		return nil, ErrNotAuthenticated
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)

		resp.Body.Close()

		return nil, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	return resp.Body, nil
}

// GetSecrets lists the secret keys configured for an app. Values are never
// returned by the provider.
func (c *Client) GetSecrets(ctx context.Context, appID string) ([]string, error) {
	var keys []string

	if err := c.do(ctx, http.MethodGet, "/v1/apps/"+appID+"/secrets", nil, nil, &keys); err != nil {
		return nil, err
	}

	return keys, nil
}

// UpdateSecrets sets secrets on an app, optionally rebooting it so the new
// values take effect immediately.
func (c *Client) UpdateSecrets(ctx context.Context, appID string, secrets map[string]string, reboot bool) error {
	body := map[string]any{
		"secrets": secrets,
		"reboot":  reboot,
	}

	return c.do(ctx, http.MethodPut, "/v1/apps/"+appID+"/secrets", nil, body, nil)
}

// DeleteSecret removes one secret from an app.
func (c *Client) DeleteSecret(ctx context.Context, appID, key string, reboot bool) error {
	query := url.Values{"reboot": []string{fmt.Sprintf("%t", reboot)}}

	return c.do(ctx, http.MethodDelete, "/v1/apps/"+appID+"/secrets/"+key, query, nil, nil)
}

// ListVMTypes returns the provider's VM type catalog.
func (c *Client) ListVMTypes(ctx context.Context) ([]map[string]any, error) {
	var vmtypes []map[string]any

	if err := c.do(ctx, http.MethodGet, "/v1/vmtypes", nil, nil, &vmtypes); err != nil {
		return nil, err
	}

	return vmtypes, nil
}

// ListRegions returns the provider's region catalog.
func (c *Client) ListRegions(ctx context.Context) ([]map[string]any, error) {
	var regions []map[string]any

	if err := c.do(ctx, http.MethodGet, "/v1/regions", nil, nil, &regions); err != nil {
		return nil, err
	}

	return regions, nil
}
