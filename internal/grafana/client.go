package grafana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const provisionTimeout = 30 * time.Second

// ProvisionError is returned when the dashboard-creation endpoint
// answers with a non-2xx status. It carries the transport status for
// the failure taxonomy.
type ProvisionError struct {
	Status int
	Body   string
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("grafana returned status %d: %s", e.Status, e.Body)
}

// Provisioned describes a successfully deployed dashboard.
type Provisioned struct {
	ID       int64  `json:"id"`
	UID      string `json:"uid"`
	URL      string `json:"url"`
	EmbedURL string `json:"embed_url"`
	PanelID  int    `json:"panel_id"`
}

// Client talks to the Grafana HTTP API with basic auth.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a Grafana client for the given base URL and basic
// auth credentials.
func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

// createDashboardRequest is the JSON body for POST /api/dashboards/db.
type createDashboardRequest struct {
	Dashboard Dashboard `json:"dashboard"`
	FolderID  int       `json:"folderId"`
	Overwrite bool      `json:"overwrite"`
	Message   string    `json:"message"`
}

// createDashboardResponse mirrors the fields we need from the response.
type createDashboardResponse struct {
	ID  int64  `json:"id"`
	UID string `json:"uid"`
}

// CreateDashboard deploys the dashboard definition and returns the
// provisioned identifier plus embed reference. One outbound request,
// no retry: a non-2xx answer is terminal for this request.
func (c *Client) CreateDashboard(ctx context.Context, d Dashboard, userID int64) (Provisioned, error) {
	body, err := json.Marshal(createDashboardRequest{
		Dashboard: d,
		FolderID:  0,
		Overwrite: false,
		Message:   fmt.Sprintf("AI-generated dashboard for user %d", userID),
	})
	if err != nil {
		return Provisioned{}, fmt.Errorf("marshalling dashboard: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, provisionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/dashboards/db", bytes.NewReader(body))
	if err != nil {
		return Provisioned{}, fmt.Errorf("creating provision request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Provisioned{}, fmt.Errorf("provision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Provisioned{}, &ProvisionError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var result createDashboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Provisioned{}, fmt.Errorf("decoding provision response: %w", err)
	}
	if result.UID == "" {
		return Provisioned{}, fmt.Errorf("provision response missing uid")
	}

	return Provisioned{
		ID:       result.ID,
		UID:      result.UID,
		URL:      fmt.Sprintf("%s/d/%s", c.baseURL, result.UID),
		EmbedURL: fmt.Sprintf("%s/d-solo/%s?orgId=1&panelId=1&refresh=30s&kiosk", c.baseURL, result.UID),
		PanelID:  1,
	}, nil
}

// Ping verifies connectivity by fetching the current organization.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/org", nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("grafana ping: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("grafana ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)
}
