// Package backupcheck verifies backup job health against a Veeam Backup &
// Replication server: last result per job, jobs outside the RPO window, and
// disabled jobs.
package backupcheck

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/infrawisetech/IT-Admin-Toolkit/internal/config"
)

const apiVersion = "1.1-rev2"

// JobState is one job record from the server's state listing.
type JobState struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	// Status is running, inactive or disabled; LastResult is Success,
	// Warning, Failed or None.
	Status      string    `json:"status"`
	LastResult  string    `json:"lastResult"`
	LastRun     time.Time `json:"lastRun"`
	NextRun     time.Time `json:"nextRun"`
	Workload    string    `json:"workload,omitempty"`
	Repository  string    `json:"repositoryName,omitempty"`
	ObjectCount int       `json:"objectsCount,omitempty"`
}

// Client talks to the Veeam REST API.
type Client struct {
	baseURL  string
	user     string
	password string
	client   *http.Client
	token    string
}

// NewClient creates an unauthenticated client; Login must be called before
// other requests.
func NewClient(cfg config.VeeamConfig) *Client {
	transport := http.DefaultTransport
	if cfg.Insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		user:     cfg.User,
		password: cfg.Password,
		client:   &http.Client{Timeout: 60 * time.Second, Transport: transport},
	}
}

// Login obtains an OAuth token with the password grant.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.user},
		"password":   {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/api/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-api-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token request failed %d: %s", resp.StatusCode, truncateAPIError(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse token response: %w", err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("empty access token from %s", c.baseURL)
	}
	c.token = result.AccessToken
	return nil
}

// JobStates lists the state of every configured job.
func (c *Client) JobStates(ctx context.Context) ([]JobState, error) {
	req, err := http.NewRequestWithContext(ctx, "GET",
		c.baseURL+"/api/v1/jobs/states", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("x-api-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job states request failed %d: %s", resp.StatusCode, truncateAPIError(body))
	}

	var result struct {
		Data []JobState `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse job states: %w", err)
	}
	return result.Data, nil
}

func truncateAPIError(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
