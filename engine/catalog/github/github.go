// Package github provides the new-push trigger/action pair and the
// create_issue reaction backed by the GitHub REST API.
package github

import (
	"context"
	"fmt"
	"time"

	"github.com/hookline/hookline/engine/catalog/shared"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/schema"
	"github.com/hookline/hookline/engine/service/githubapi"
)

// now is swapped by tests.
var now = time.Now

// Client is the slice of the GitHub adapter the components consume.
type Client interface {
	ListCommits(ctx context.Context, token, repo string) ([]githubapi.Commit, error)
	CreateIssue(ctx context.Context, token, repo, title, body string) (*githubapi.Issue, error)
}

var commitFields = schema.Schema{
	"commit_sha":     {Type: schema.TypeString, Required: true},
	"commit_message": {Type: schema.TypeString, Required: true},
	"author":         {Type: schema.TypeString, Required: true},
	"branch":         {Type: schema.TypeString, Required: true},
	"commit_url":     {Type: schema.TypeString, Required: true},
}

// Register adds the GitHub components to the registry.
func Register(reg *component.Registry, client Client) error {
	defs := []*component.Definition{
		{
			Name:    "new_push",
			Kind:    core.KindTrigger,
			Service: core.ServiceGithub,
			ConfigSchema: schema.Schema{
				"repo": {Type: schema.TypeString, Required: true, Description: "repository as owner/name"},
			},
			NewTrigger: func(cfg core.Params) (component.Trigger, error) {
				return newPushTrigger(client, cfg)
			},
		},
		{
			Name:    "new_push",
			Kind:    core.KindAction,
			Service: core.ServiceGithub,
			ConfigSchema: commitFields.Merge(schema.Schema{
				"content": {Type: schema.TypeString, Required: true},
			}),
			NewAction: newPushAction,
		},
		{
			Name:    "create_issue",
			Kind:    core.KindReaction,
			Service: core.ServiceGithub,
			ConfigSchema: schema.Schema{
				"repository": {Type: schema.TypeString, Required: true, Description: "target repository as owner/name"},
				"title":      {Type: schema.TypeString, Required: true},
				"body":       {Type: schema.TypeString, Required: true},
			},
			NewReaction: func(cfg core.Params) (component.Reaction, error) {
				return newIssueReaction(client, cfg)
			},
		},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// new_push trigger
// -----------------------------------------------------------------------------

// pushTrigger watches the head of a repository. The cursor is the last seen
// commit SHA, so the first evaluation reports the current head.
type pushTrigger struct {
	client  Client
	token   string
	repo    string
	lastSHA string
}

func newPushTrigger(client Client, cfg core.Params) (*pushTrigger, error) {
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	repo, _ := cfg.Prop("repo").(string)
	return &pushTrigger{client: client, token: token, repo: repo}, nil
}

func (t *pushTrigger) Evaluate(ctx context.Context) (*component.TriggerResponse, error) {
	commits, err := t.client.ListCommits(ctx, t.token, t.repo)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits for %s: %w", t.repo, err)
	}
	if len(commits) == 0 {
		return nil, nil
	}
	head := commits[0]
	if head.SHA == t.lastSHA {
		return nil, nil
	}
	t.lastSHA = head.SHA
	return &component.TriggerResponse{
		TriggeredAt: shared.Epoch(now()),
		Content:     string(head.Raw),
		Details:     core.Params{"event": "new_push", "repository": t.repo},
		Fields: core.Params{
			"commit_sha":     head.SHA,
			"commit_message": head.Message,
			"author":         head.Author,
			// The list endpoint carries no branch, so the head of the
			// default branch is what this trigger watches.
			"branch":     "main",
			"commit_url": head.URL,
		},
	}, nil
}

// -----------------------------------------------------------------------------
// new_push action
// -----------------------------------------------------------------------------

type pushAction struct {
	gate *shared.Gate
	data core.Params
}

func newPushAction(cfg core.Params) (component.Action, error) {
	gate, err := shared.GateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &pushAction{gate: gate, data: cfg}, nil
}

func (a *pushAction) Execute(_ context.Context) (*component.ActionResponse, error) {
	ok, err := a.gate.Accept(a.data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	str := func(key string) string {
		s, _ := a.data.Prop(key).(string)
		return s
	}
	return &component.ActionResponse{
		Success: true,
		Details: core.Params{"event": "new_push"},
		Fields: core.Params{
			"content":        str("content"),
			"commit_sha":     str("commit_sha"),
			"commit_message": str("commit_message"),
			"author":         str("author"),
			"branch":         str("branch"),
			"commit_url":     str("commit_url"),
		},
	}, nil
}

// -----------------------------------------------------------------------------
// create_issue reaction
// -----------------------------------------------------------------------------

type issueReaction struct {
	client Client
	token  string
	cfg    core.Params
}

func newIssueReaction(client Client, cfg core.Params) (*issueReaction, error) {
	token, err := shared.Token(cfg)
	if err != nil {
		return nil, err
	}
	return &issueReaction{client: client, token: token, cfg: cfg}, nil
}

func (r *issueReaction) Execute(ctx context.Context, result *component.ActionResponse) (*component.ReactionResponse, error) {
	data := result.AsParams()
	str := func(key string) string {
		s, _ := r.cfg.Prop(key).(string)
		return s
	}
	title, err := shared.Expand(str("title"), data)
	if err != nil {
		return nil, fmt.Errorf("failed to expand title: %w", err)
	}
	body, err := shared.Expand(str("body"), data)
	if err != nil {
		return nil, fmt.Errorf("failed to expand body: %w", err)
	}
	repo := str("repository")
	issue, err := r.client.CreateIssue(ctx, r.token, repo, title, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue in %s: %w", repo, err)
	}
	return &component.ReactionResponse{
		Success: true,
		Details: core.Params{
			"message":      "issue created",
			"issue_number": issue.Number,
			"issue_url":    issue.URL,
		},
	}, nil
}
