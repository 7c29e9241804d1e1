package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DirectoryClient resolves approver roles to user ids against the user
// directory service. It is used only for notification fan-out; the
// authorization gate works on roles alone.
type DirectoryClient struct {
	baseURL string
	client  *http.Client
}

// NewDirectoryClient creates a directory client for the given base URL.
func NewDirectoryClient(baseURL string, timeout time.Duration) *DirectoryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DirectoryClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type usersWithRoleResponse struct {
	UserIDs []string `json:"user_ids"`
}

// GetUsersWithRole returns the user ids holding the given role. A client
// with no base URL configured resolves every role to an empty slice.
func (c *DirectoryClient) GetUsersWithRole(ctx context.Context, roleID string) ([]string, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/api/v1/roles/%s/users", c.baseURL, url.PathEscape(roleID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query directory for role %s: %w", roleID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d for role %s", resp.StatusCode, roleID)
	}

	var body usersWithRoleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode directory response: %w", err)
	}
	return body.UserIDs, nil
}
