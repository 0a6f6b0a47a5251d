// Package githubapi wraps the go-github client for the commit-polling
// trigger and the issue-creating reaction. Tokens are per-user, so the
// underlying client is rebuilt for each call rather than held.
package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/hookline/hookline/engine/core"
)

const commitPageSize = 20

// Commit is the slice of a repository commit the triggers care about.
type Commit struct {
	SHA     string
	Message string
	Author  string
	URL     string
	Raw     []byte
}

// Issue identifies an issue created through the API.
type Issue struct {
	Number int
	URL    string
}

// Client talks to the GitHub REST API. The zero base URL targets
// api.github.com; tests point it at a local server.
type Client struct {
	baseURL string
}

func NewClient() *Client {
	return &Client{}
}

func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{baseURL: baseURL}
}

func (c *Client) api(ctx context.Context, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: strings.TrimSpace(token)},
	)
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if c.baseURL == "" {
		return client, nil
	}
	client, err := client.WithEnterpriseURLs(c.baseURL, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure github base URL: %w", err)
	}
	return client, nil
}

// ListCommits returns the most recent commits of a repository, newest first.
func (c *Client) ListCommits(ctx context.Context, token, repo string) ([]Commit, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	api, err := c.api(ctx, token)
	if err != nil {
		return nil, err
	}
	commits, _, err := api.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: commitPageSize},
	})
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Commit, 0, len(commits))
	for _, rc := range commits {
		raw, _ := json.Marshal(rc)
		out = append(out, Commit{
			SHA:     rc.GetSHA(),
			Message: rc.GetCommit().GetMessage(),
			Author:  rc.GetCommit().GetAuthor().GetName(),
			URL:     rc.GetHTMLURL(),
			Raw:     raw,
		})
	}
	return out, nil
}

// CreateIssue opens a new issue on the repository.
func (c *Client) CreateIssue(ctx context.Context, token, repo, title, body string) (*Issue, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	api, err := c.api(ctx, token)
	if err != nil {
		return nil, err
	}
	issue, _, err := api.Issues.Create(ctx, owner, name, &github.IssueRequest{
		Title: &title,
		Body:  &body,
	})
	if err != nil {
		return nil, classify(err)
	}
	return &Issue{Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("repository %q is not in owner/name form: %w", repo, core.ErrInvalidConfig)
	}
	return owner, name, nil
}

// classify maps go-github errors onto the transient/fatal sentinels. Rate
// limits and 5xx responses are worth retrying on a later poll; 4xx responses
// mean the token or the request itself is wrong.
func classify(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("github rate limited: %w", core.ErrUpstreamTransient)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("github abuse detection tripped: %w", core.ErrUpstreamTransient)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		base := core.ErrUpstreamFatal
		if status >= 500 {
			base = core.ErrUpstreamTransient
		}
		return fmt.Errorf("github returned status %d: %s: %w", status, respErr.Message, base)
	}
	return fmt.Errorf("github request failed: %v: %w", err, core.ErrUpstreamTransient)
}
