package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the Vaulty API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	verbose    bool
}

// NewClient creates a new API client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		verbose: isVerbose(),
	}
}

// Project represents a Vaulty project.
type Project struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	AutoApprovalPatterns []string `json:"auto_approval_patterns,omitempty"`
	CreatedAt            string   `json:"created_at"`
}

// SecretMeta represents a secret without its value.
type SecretMeta struct {
	Key       string `json:"key"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Secret represents a secret with its decrypted value.
type Secret struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Token represents an issued access token. The plaintext Token field is
// only present in create and rotate responses.
type Token struct {
	ID        string `json:"id"`
	Token     string `json:"token,omitempty"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id,omitempty"`
	IsInit    bool   `json:"is_init_token,omitempty"`
	IsCurrent bool   `json:"is_current_token,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Device represents a registered device.
type Device struct {
	ID           string   `json:"id"`
	ProjectID    string   `json:"project_id"`
	DeviceID     string   `json:"device_id"`
	Name         string   `json:"name,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Status       string   `json:"status"`
	WorkingDir   string   `json:"working_dir,omitempty"`
	AuthorizedBy string   `json:"authorized_by,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

// RegisteredDevice is the registration response: the device record plus
// its derived token, shown exactly once.
type RegisteredDevice struct {
	Device Device `json:"device"`
	Token  string `json:"token"`
}

// Activity represents one recorded request.
type Activity struct {
	ID          string `json:"id"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Action      string `json:"action"`
	ProjectName string `json:"project_name,omitempty"`
	TokenType   string `json:"token_type"`
	StatusCode  int    `json:"status_code"`
	Exposed     bool   `json:"exposed_confidential_data"`
	Source      string `json:"source"`
	CreatedAt   string `json:"created_at"`
}

// ActivityPage is a paginated activity listing.
type ActivityPage struct {
	Activities []Activity `json:"activities"`
	Total      int        `json:"total"`
	HasMore    bool       `json:"has_more"`
}

// DashboardStats summarizes the vault.
type DashboardStats struct {
	Projects       int `json:"projects"`
	Secrets        int `json:"secrets"`
	Devices        int `json:"devices"`
	PendingDevices int `json:"pending_devices"`
	MasterTokens   int `json:"master_tokens"`
	Activities7d   int `json:"activities_7d"`
	Exposures7d    int `json:"exposures_7d"`
}

// APIResponse wraps API responses.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// request makes an authenticated request to the API.
func (c *Client) request(method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "vaulty-cli/1.0")

	if c.verbose {
		fmt.Printf("[DEBUG] %s %s%s\n", method, c.baseURL, path)
		if len(jsonBody) > 0 {
			fmt.Printf("[DEBUG] Request body: %s\n", string(jsonBody))
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.verbose {
		fmt.Printf("[DEBUG] Response status: %d\n", resp.StatusCode)
		if len(respBody) > 0 && len(respBody) < 1000 {
			fmt.Printf("[DEBUG] Response body: %s\n", string(respBody))
		} else if len(respBody) >= 1000 {
			fmt.Printf("[DEBUG] Response body: %s... (truncated)\n", string(respBody[:500]))
		}
	}

	if resp.StatusCode >= 400 {
		var apiResp APIResponse
		if err := json.Unmarshal(respBody, &apiResp); err == nil && apiResp.Error != nil {
			return nil, apiResp.Error
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return respBody, nil
}

// get performs a GET request and decodes the data envelope into out.
func (c *Client) get(path string, out any) error {
	body, err := c.request("GET", path, nil)
	if err != nil {
		return err
	}
	return decodeData(body, out)
}

func decodeData(body []byte, out any) error {
	var resp APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// secretsBase returns the secrets route for the given project, or the
// implicit route bound to the credential when no project is named.
func secretsBase(project string) string {
	if project == "" {
		return "/api/secrets"
	}
	return "/api/projects/" + url.PathEscape(project) + "/secrets"
}

// ListProjects returns all projects visible to the token.
func (c *Client) ListProjects() ([]Project, error) {
	var projects []Project
	if err := c.get("/api/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a new project.
func (c *Client) CreateProject(name, description string, patterns []string) (*Project, error) {
	body, err := c.request("POST", "/api/projects", map[string]any{
		"name":                   name,
		"description":            description,
		"auto_approval_patterns": patterns,
	})
	if err != nil {
		return nil, err
	}

	var project Project
	if err := decodeData(body, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProject returns a project by name.
func (c *Client) GetProject(name string) (*Project, error) {
	var project Project
	if err := c.get("/api/projects/"+url.PathEscape(name), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject deletes a project and everything under it.
func (c *Client) DeleteProject(name string) error {
	_, err := c.request("DELETE", "/api/projects/"+url.PathEscape(name), nil)
	return err
}

// ListSecrets returns secret metadata for a project.
func (c *Client) ListSecrets(project string) ([]SecretMeta, error) {
	var metas []SecretMeta
	if err := c.get(secretsBase(project), &metas); err != nil {
		return nil, err
	}
	return metas, nil
}

// GetSecret returns a decrypted secret value.
func (c *Client) GetSecret(project, key string) (*Secret, error) {
	var secret Secret
	if err := c.get(secretsBase(project)+"/"+url.PathEscape(key), &secret); err != nil {
		return nil, err
	}
	return &secret, nil
}

// SetSecret creates or updates a secret.
func (c *Client) SetSecret(project, key, value string) error {
	_, err := c.request("PUT", secretsBase(project)+"/"+url.PathEscape(key), map[string]string{
		"value": value,
	})
	return err
}

// DeleteSecret deletes a secret.
func (c *Client) DeleteSecret(project, key string) error {
	_, err := c.request("DELETE", secretsBase(project)+"/"+url.PathEscape(key), nil)
	return err
}

// ExportSecrets returns all decrypted values for a project.
func (c *Client) ExportSecrets(project string) (map[string]string, error) {
	var secrets map[string]string
	if err := c.get(secretsBase(project)+"/export", &secrets); err != nil {
		return nil, err
	}
	return secrets, nil
}

// ListMasterTokens lists master tokens.
func (c *Client) ListMasterTokens() ([]Token, error) {
	var tokens []Token
	if err := c.get("/api/master-tokens", &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// CreateMasterToken mints a new master token.
func (c *Client) CreateMasterToken(name string) (*Token, error) {
	body, err := c.request("POST", "/api/master-tokens", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var token Token
	if err := decodeData(body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeMasterToken revokes a master token by ID.
func (c *Client) RevokeMasterToken(id string) error {
	_, err := c.request("DELETE", "/api/master-tokens/"+url.PathEscape(id), nil)
	return err
}

// RotateMasterToken replaces a master token's value, keeping its identity.
func (c *Client) RotateMasterToken(id string) (*Token, error) {
	body, err := c.request("POST", "/api/master-tokens/"+url.PathEscape(id)+"/rotate", nil)
	if err != nil {
		return nil, err
	}
	var token Token
	if err := decodeData(body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// ListProjectTokens lists tokens scoped to a project.
func (c *Client) ListProjectTokens(project string) ([]Token, error) {
	var tokens []Token
	if err := c.get("/api/projects/"+url.PathEscape(project)+"/tokens", &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// CreateProjectToken mints a token scoped to a project.
func (c *Client) CreateProjectToken(project, name string) (*Token, error) {
	body, err := c.request("POST", "/api/projects/"+url.PathEscape(project)+"/tokens", map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var token Token
	if err := decodeData(body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeProjectToken revokes a project token by ID.
func (c *Client) RevokeProjectToken(id string) error {
	_, err := c.request("DELETE", "/api/tokens/"+url.PathEscape(id), nil)
	return err
}

// RotateProjectToken replaces a project token's value.
func (c *Client) RotateProjectToken(id string) (*Token, error) {
	body, err := c.request("POST", "/api/tokens/"+url.PathEscape(id)+"/rotate", nil)
	if err != nil {
		return nil, err
	}
	var token Token
	if err := decodeData(body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// ListDevices lists devices for a project.
func (c *Client) ListDevices(project string) ([]Device, error) {
	var devices []Device
	if err := c.get("/api/projects/"+url.PathEscape(project)+"/devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// ListAllDevices lists devices across all visible projects.
func (c *Client) ListAllDevices() ([]Device, error) {
	var devices []Device
	if err := c.get("/api/devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// RegisterDevice registers this machine against a project.
func (c *Client) RegisterDevice(project, deviceID, name, workingDir string, tags []string) (*RegisteredDevice, error) {
	body, err := c.request("POST", "/api/projects/"+url.PathEscape(project)+"/devices", map[string]any{
		"device_id":   deviceID,
		"name":        name,
		"tags":        tags,
		"working_dir": workingDir,
	})
	if err != nil {
		return nil, err
	}

	var registered RegisteredDevice
	if err := decodeData(body, &registered); err != nil {
		return nil, err
	}
	return &registered, nil
}

// AuthorizeDevice approves a pending device.
func (c *Client) AuthorizeDevice(project, id, authorizedBy string) (*Device, error) {
	body, err := c.request("POST", "/api/projects/"+url.PathEscape(project)+"/devices/"+url.PathEscape(id)+"/authorize", map[string]string{
		"authorized_by": authorizedBy,
	})
	if err != nil {
		return nil, err
	}

	var device Device
	if err := decodeData(body, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// RejectDevice rejects and removes a pending device.
func (c *Client) RejectDevice(project, id string) error {
	_, err := c.request("POST", "/api/projects/"+url.PathEscape(project)+"/devices/"+url.PathEscape(id)+"/reject", nil)
	return err
}

// DeviceStatus polls the approval status using the device's own token.
func (c *Client) DeviceStatus(deviceID string) (*Device, error) {
	var device Device
	if err := c.get("/api/devices/status?device_id="+url.QueryEscape(deviceID), &device); err != nil {
		return nil, err
	}
	return &device, nil
}

// RecentActivities returns the most recent activity records.
func (c *Client) RecentActivities(limit int) ([]Activity, error) {
	var activities []Activity
	if err := c.get(fmt.Sprintf("/api/activities/recent?limit=%d", limit), &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// ListActivities returns a filtered activity page. The query string is
// passed through to the server as-is.
func (c *Client) ListActivities(query string) (*ActivityPage, error) {
	path := "/api/activities"
	if query != "" {
		path += "?" + query
	}
	var page ActivityPage
	if err := c.get(path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Dashboard returns vault-wide counters.
func (c *Client) Dashboard() (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.get("/api/dashboard/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
