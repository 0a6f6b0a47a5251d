package cli

import (
	"context"
	"fmt"

	"github.com/hookline/hookline/engine/catalog"
	"github.com/hookline/hookline/engine/catalog/discord"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/infra/cache"
	"github.com/hookline/hookline/engine/infra/sugardb"
	"github.com/hookline/hookline/engine/queue"
	"github.com/hookline/hookline/engine/service/discordgw"
	"github.com/hookline/hookline/engine/service/githubapi"
	"github.com/hookline/hookline/engine/service/googleapi"
	"github.com/hookline/hookline/engine/service/graphapi"
	"github.com/hookline/hookline/engine/service/spotifyapi"
	"github.com/hookline/hookline/pkg/config"
)

// openQueue builds the queue backend named by the configuration and returns
// it with its cleanup. The redis driver owns one client connection; the
// embedded driver boots an in-process store whose lifetime is bound to ctx.
func openQueue(ctx context.Context, cfg *config.Config) (queue.Queue, func(), error) {
	switch cfg.Queue.Driver {
	case config.QueueDriverRedis:
		client, err := cache.NewRedis(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		q, err := queue.NewRedisQueue(client.Client(), cfg.Queue.Name)
		if err != nil {
			_ = client.Close(ctx)
			return nil, nil, err
		}
		return q, func() { _ = client.Close(context.Background()) }, nil
	case config.QueueDriverEmbedded:
		server, err := sugardb.NewEmbedded(ctx, cfg.Queue.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start embedded queue store: %w", err)
		}
		q, err := sugardb.NewQueue(server, cfg.Queue.Name)
		if err != nil {
			return nil, nil, err
		}
		return q, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}
}

// buildRegistry wires the bundled catalog against the live service adapters.
// The Discord bot token may be empty: areas on other services keep running
// and the dial error surfaces through the affected evaluator's backoff.
func buildRegistry(cfg *config.Config) (*component.Registry, error) {
	botToken := cfg.OAuth.Provider("discord").Token.Value()
	return catalog.Build(catalog.Deps{
		Gmail:   googleapi.NewClient(),
		Outlook: graphapi.NewClient(),
		Github:  githubapi.NewClient(),
		Spotify: spotifyapi.NewClient(),
		DiscordDial: func() (discord.EventSource, error) {
			gateway, err := discordgw.NewGateway(botToken)
			if err != nil {
				return nil, err
			}
			return gateway, nil
		},
		DiscordSender: discordgw.NewClient(botToken),
	})
}
