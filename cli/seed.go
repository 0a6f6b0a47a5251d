package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/hookline/hookline/engine/area"
	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/infra/postgres"
	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
)

// seedFile is the YAML fixture format: service credentials first, then the
// areas referencing them. Area ids are optional; omitted ones are generated,
// which inserts a fresh row on every run instead of updating in place.
type seedFile struct {
	Credentials []seedCredential `yaml:"credentials"`
	Areas       []seedArea       `yaml:"areas"`
}

type seedCredential struct {
	UserID       string `yaml:"user_id"`
	Service      string `yaml:"service"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

type seedArea struct {
	ID             string      `yaml:"id"`
	UserID         string      `yaml:"user_id"`
	Trigger        string      `yaml:"trigger"`
	Action         string      `yaml:"action"`
	Reaction       string      `yaml:"reaction"`
	TriggerConfig  core.Params `yaml:"trigger_config"`
	ActionConfig   core.Params `yaml:"action_config"`
	ReactionConfig core.Params `yaml:"reaction_config"`
}

func SeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load areas and credentials from a YAML fixture",
		Long: "seed upserts the credentials and areas of a YAML fixture into the " +
			"database. Meant for development setups; the supervisor picks the new " +
			"areas up on its next reconcile pass.",
		RunE: runSeed,
	}
	cmd.Flags().String("file", "seed.yaml", "Fixture to load")
	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	log := logger.FromContext(ctx)

	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return fmt.Errorf("failed to get file flag: %w", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}
	fixture, err := parseSeedFile(raw)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("failed to build component registry: %w", err)
	}
	areas, err := fixture.areas(registry)
	if err != nil {
		return err
	}

	store, err := postgres.NewStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(ctx) }()

	credRepo := postgres.NewCredentialRepo(store.Pool())
	for _, cred := range fixture.Credentials {
		userID, err := core.ParseID(cred.UserID)
		if err != nil {
			return fmt.Errorf("credential for service %s: %w", cred.Service, err)
		}
		err = credRepo.Upsert(ctx, userID, core.ServiceID(cred.Service), &area.Credential{
			AccessToken:  cred.AccessToken,
			RefreshToken: cred.RefreshToken,
		})
		if err != nil {
			return fmt.Errorf("failed to seed credential %s/%s: %w", cred.UserID, cred.Service, err)
		}
	}

	areaRepo := postgres.NewAreaRepo(store.Pool())
	for _, a := range areas {
		if err := areaRepo.Upsert(ctx, a); err != nil {
			return fmt.Errorf("failed to seed area %s: %w", a.ID, err)
		}
	}

	log.Info("Fixture loaded", "credentials", len(fixture.Credentials), "areas", len(areas))
	return nil
}

func parseSeedFile(raw []byte) (*seedFile, error) {
	var fixture seedFile
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &fixture, nil
}

// areas materializes the fixture entries, resolving every referenced kind
// against the registry so a typo fails the whole run before anything is
// written.
func (f *seedFile) areas(registry kindResolver) ([]*area.Area, error) {
	out := make([]*area.Area, 0, len(f.Areas))
	for i := range f.Areas {
		entry := &f.Areas[i]
		built, err := entry.build(registry)
		if err != nil {
			return nil, fmt.Errorf("area %d: %w", i, err)
		}
		out = append(out, built)
	}
	return out, nil
}

// kindResolver is the slice of the component registry the fixture loader
// needs.
type kindResolver interface {
	Trigger(name string) (*component.Definition, error)
	Action(name string) (*component.Definition, error)
	Reaction(name string) (*component.Definition, error)
}

func (s *seedArea) build(registry kindResolver) (*area.Area, error) {
	id := core.MustNewID()
	if s.ID != "" {
		parsed, err := core.ParseID(s.ID)
		if err != nil {
			return nil, err
		}
		id = parsed
	}
	userID, err := core.ParseID(s.UserID)
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	if s.Trigger != "" {
		if _, err := registry.Trigger(s.Trigger); err != nil {
			return nil, err
		}
	}
	if _, err := registry.Action(s.Action); err != nil {
		return nil, err
	}
	if _, err := registry.Reaction(s.Reaction); err != nil {
		return nil, err
	}
	built := &area.Area{
		ID:             id,
		UserID:         userID,
		TriggerKind:    s.Trigger,
		ActionKind:     s.Action,
		ReactionKind:   s.Reaction,
		TriggerConfig:  s.TriggerConfig,
		ActionConfig:   s.ActionConfig,
		ReactionConfig: s.ReactionConfig,
	}
	if err := built.Validate(); err != nil {
		return nil, err
	}
	return built, nil
}
