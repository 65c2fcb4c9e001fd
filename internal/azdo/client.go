// Package azdo is a thin Azure DevOps git REST client covering the
// calls the review cycle issues: pull request listings, iterations,
// changed files, file content, and comment threads.
package azdo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiVersion = "7.1"

// HTTPError carries a non-2xx provider response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for one organization, e.g.
// https://dev.azure.com/contoso, authenticating with a personal access
// token.
func New(organizationURL, personalAccessToken string) *Client {
	return &Client{
		baseURL: strings.TrimRight(organizationURL, "/"),
		token:   personalAccessToken,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListOpenPullRequests returns the active pull requests of one
// repository.
func (c *Client) ListOpenPullRequests(ctx context.Context, project, repository string) ([]PullRequest, error) {
	path := fmt.Sprintf("/%s/_apis/git/repositories/%s/pullrequests",
		url.PathEscape(project), url.PathEscape(repository))
	query := url.Values{
		"searchCriteria.status": {"active"},
		"api-version":           {apiVersion},
	}
	var resp listResponse[PullRequest]
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("list pull requests for %s/%s: %w", project, repository, err)
	}
	return resp.Value, nil
}

// ListIterations returns every iteration of a pull request, oldest
// first as the provider orders them.
func (c *Client) ListIterations(ctx context.Context, project, repositoryID string, pullRequestID int) ([]Iteration, error) {
	path := fmt.Sprintf("/%s/_apis/git/repositories/%s/pullRequests/%d/iterations",
		url.PathEscape(project), url.PathEscape(repositoryID), pullRequestID)
	var resp listResponse[Iteration]
	if err := c.get(ctx, path, url.Values{"api-version": {apiVersion}}, &resp); err != nil {
		return nil, fmt.Errorf("list iterations for PR %d: %w", pullRequestID, err)
	}
	return resp.Value, nil
}

// ListChangedFiles returns the files touched by one iteration.
func (c *Client) ListChangedFiles(ctx context.Context, project, repositoryID string, pullRequestID, iterationID int) ([]ChangeEntry, error) {
	path := fmt.Sprintf("/%s/_apis/git/repositories/%s/pullRequests/%d/iterations/%d/changes",
		url.PathEscape(project), url.PathEscape(repositoryID), pullRequestID, iterationID)
	var resp struct {
		ChangeEntries []ChangeEntry `json:"changeEntries"`
	}
	if err := c.get(ctx, path, url.Values{"api-version": {apiVersion}}, &resp); err != nil {
		return nil, fmt.Errorf("list changes for PR %d iteration %d: %w", pullRequestID, iterationID, err)
	}
	return resp.ChangeEntries, nil
}

// GetFileContent fetches a file's text at a specific commit. A missing
// file is not an error: the caller gets an empty string and the miss is
// logged.
func (c *Client) GetFileContent(ctx context.Context, project, repositoryID, filePath, revision string) (string, error) {
	path := fmt.Sprintf("/%s/_apis/git/repositories/%s/items",
		url.PathEscape(project), url.PathEscape(repositoryID))
	query := url.Values{
		"path":                          {filePath},
		"versionDescriptor.version":     {revision},
		"versionDescriptor.versionType": {"commit"},
		"includeContent":                {"true"},
		"$format":                       {"text"},
		"api-version":                   {apiVersion},
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("get content of %s: %w", filePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("file not found at revision", "path", filePath, "revision", revision)
		return "", nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read content of %s: %w", filePath, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return string(body), nil
}

// PostComment opens one comment thread on a pull request. A line
// number of zero posts a file-level thread. Failures are the caller's
// to log; they are never retried.
func (c *Client) PostComment(ctx context.Context, project, repositoryID string, pullRequestID int, filePath string, lineNumber int, text string) error {
	thread := commentThread{
		Comments: []threadComment{{Content: text, CommentType: 1}},
		Status:   1,
	}
	if filePath != "" {
		tc := &threadContext{FilePath: ensureLeadingSlash(filePath)}
		if lineNumber > 0 {
			tc.RightFileStart = &position{Line: lineNumber, Offset: 1}
			tc.RightFileEnd = &position{Line: lineNumber, Offset: 1}
		}
		thread.ThreadContext = tc
	}

	path := fmt.Sprintf("/%s/_apis/git/repositories/%s/pullRequests/%d/threads",
		url.PathEscape(project), url.PathEscape(repositoryID), pullRequestID)
	if err := c.post(ctx, path, url.Values{"api-version": {apiVersion}}, thread); err != nil {
		return fmt.Errorf("post comment on PR %d: %w", pullRequestID, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth("", c.token)
	return req, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, query, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func ensureLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
