package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"
)

// Client reads commit identifiers from a GitHub-style commits API.
type Client struct {
	// baseURL is the API root, e.g. https://api.github.com.
	baseURL string
	// httpClient issues the read-only API calls.
	httpClient *http.Client
}

// Option configures client behaviour.
type Option func(*Client)

// WithTimeout sets the per-call timeout for API requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

const defaultTimeout = 10 * time.Second

var (
	// errBaseURLRequired is returned when a base URL is missing.
	errBaseURLRequired = errors.New("base URL must be provided")
	// errBadStatus is returned on a non-success API response.
	errBadStatus = errors.New("unexpected http status")
	// errEmptySHA is returned when the API response carries no commit identifier.
	errEmptySHA = errors.New("commit response contains no sha")
)

// NewClient builds an upstream API client for the provided base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// commitResponse is the subset of the commits API payload this tool consumes.
type commitResponse struct {
	SHA string `json:"sha"`
}

// LatestCommit returns the identifier of the head commit of the given branch.
// This is a single idempotent read; failures abort the whole check.
func (c *Client) LatestCommit(ctx context.Context, owner, repo, branch string) (string, error) {
	commitURL, err := c.commitURL(owner, repo, branch)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, commitURL, http.NoBody)
	if err != nil {
		return "", err
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch latest commit: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s, %s: %w", commitURL, resp.Status, errBadStatus)
	}

	var commit commitResponse
	if err = json.NewDecoder(resp.Body).Decode(&commit); err != nil {
		return "", fmt.Errorf("decode commit response: %w", err)
	}

	if commit.SHA == "" {
		return "", errEmptySHA
	}

	return commit.SHA, nil
}

// commitURL composes the commits API URL for the branch head.
func (c *Client) commitURL(owner, repo, branch string) (string, error) {
	apiURL, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	apiURL.Path = path.Join(apiURL.Path, "repos", owner, repo, "commits", branch)

	return apiURL.String(), nil
}
