package sugardb

import (
	"context"
	"fmt"
	"os"

	sdk "github.com/echovault/sugardb/sugardb"

	"github.com/hookline/hookline/pkg/logger"
)

// Server wraps an embedded SugarDB instance. It backs the queue when the
// embedded driver is selected, so a single-node deployment needs no Redis.
type Server struct {
	db *sdk.SugarDB
}

// NewEmbedded starts an in-process SugarDB. dataDir controls AOF and
// snapshot placement; empty keeps the store memory-only.
func NewEmbedded(ctx context.Context, dataDir string) (*Server, error) {
	log := logger.FromContext(ctx)
	conf := sdk.DefaultConfig()
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sugardb data dir: %w", err)
		}
		conf.DataDir = dataDir
	}
	db, err := sdk.NewSugarDB(
		sdk.WithConfig(conf),
		sdk.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("sugardb init failed: %w", err)
	}
	log.With("queue_driver", "embedded", "data_dir", dataDir).Info("embedded sugardb initialized")
	return &Server{db: db}, nil
}

func (s *Server) DB() *sdk.SugarDB {
	return s.db
}

// HealthCheck performs a minimal read/write cycle. Instance lifetime is tied
// to the context passed at construction; there is no explicit close.
func (s *Server) HealthCheck(_ context.Context) error {
	const key = "health:check"
	if _, _, err := s.db.Set(key, "ok", sdk.SETOptions{}); err != nil {
		return err
	}
	v, err := s.db.Get(key)
	if err != nil {
		return err
	}
	if v != "ok" {
		return fmt.Errorf("health value mismatch: %q", v)
	}
	if _, err := s.db.Del(key); err != nil {
		return err
	}
	return nil
}
