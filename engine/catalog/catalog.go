// Package catalog assembles the component registry from the per-service
// packages. The composition root builds Deps once and every evaluator and
// worker shares the resulting frozen registry.
package catalog

import (
	"fmt"

	"github.com/hookline/hookline/engine/catalog/clock"
	"github.com/hookline/hookline/engine/catalog/discord"
	"github.com/hookline/hookline/engine/catalog/github"
	"github.com/hookline/hookline/engine/catalog/gmail"
	"github.com/hookline/hookline/engine/catalog/httpx"
	"github.com/hookline/hookline/engine/catalog/outlook"
	"github.com/hookline/hookline/engine/catalog/printer"
	"github.com/hookline/hookline/engine/catalog/spotify"
	"github.com/hookline/hookline/engine/component"
)

// Deps carries the service adapters the catalog components talk through.
// Gmail, Outlook, GitHub and Spotify calls authenticate per job with the
// credential the worker injects; Discord runs on the platform bot token
// baked into DiscordDial and DiscordSender.
type Deps struct {
	Gmail         gmail.Client
	Outlook       outlook.Client
	Github        github.Client
	Spotify       spotify.Client
	DiscordDial   discord.Dialer
	DiscordSender discord.Sender
}

// Build registers every bundled component and freezes the registry.
func Build(deps Deps) (*component.Registry, error) {
	reg := component.NewRegistry()
	steps := []struct {
		name     string
		register func() error
	}{
		{"clock", func() error { return clock.Register(reg) }},
		{"printer", func() error { return printer.Register(reg) }},
		{"http", func() error { return httpx.Register(reg) }},
		{"gmail", func() error { return gmail.Register(reg, deps.Gmail) }},
		{"outlook", func() error { return outlook.Register(reg, deps.Outlook) }},
		{"github", func() error { return github.Register(reg, deps.Github) }},
		{"spotify", func() error { return spotify.Register(reg, deps.Spotify) }},
		{"discord", func() error { return discord.Register(reg, deps.DiscordDial, deps.DiscordSender) }},
	}
	for _, step := range steps {
		if err := step.register(); err != nil {
			return nil, fmt.Errorf("failed to register %s components: %w", step.name, err)
		}
	}
	reg.Freeze()
	return reg, nil
}
