// Package httpx provides http_get_action, the generic outbound HTTP probe.
package httpx

import (
	"context"
	"fmt"

	"github.com/hookline/hookline/engine/catalog/shared"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/schema"
	"github.com/hookline/hookline/engine/service/upstream"
)

// One shared client; the target URL is absolute and per-action.
var httpClient = upstream.NewRestClient("")

// Register adds the HTTP components to the registry.
func Register(reg *component.Registry) error {
	return reg.Register(&component.Definition{
		Name: "http_get_action",
		Kind: core.KindAction,
		ConfigSchema: schema.Schema{
			"url": {Type: schema.TypeString, Required: true, Description: "absolute URL to GET"},
		},
		NewAction: newGetAction,
	})
}

type getAction struct {
	gate *shared.Gate
	data core.Params
	url  string
}

func newGetAction(cfg core.Params) (component.Action, error) {
	gate, err := shared.GateFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	url, _ := cfg.Prop("url").(string)
	return &getAction{gate: gate, data: cfg, url: url}, nil
}

// Execute fetches the URL and reports whatever came back. Any HTTP response
// counts as a result; only transport failures are errors.
func (a *getAction) Execute(ctx context.Context) (*component.ActionResponse, error) {
	ok, err := a.gate.Accept(a.data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	resp, err := httpClient.R().SetContext(ctx).Get(a.url)
	if err != nil {
		return nil, fmt.Errorf("failed to GET %s: %w", a.url, err)
	}
	return &component.ActionResponse{
		Success: true,
		Details: core.Params{"url": a.url},
		Fields: core.Params{
			"status": resp.StatusCode(),
			"body":   string(resp.Body()),
		},
	}, nil
}
