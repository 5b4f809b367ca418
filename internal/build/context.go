package build

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/packsmith/packsmith/pkg/config"
)

// Context holds the state constant for the life of one System: the
// resolved configuration, a unique run id, the exclusively-owned
// temporary staging root, and the component logger. The staging root
// is deleted in full when the System closes; nothing outside may
// assume its layout survives.
type Context struct {
	Config   *config.Config
	RunID    string
	TempRoot string
	Logger   *slog.Logger
}

// newContext creates the system context and its staging root.
func newContext(cfg *config.Config, logger *slog.Logger) (*Context, error) {
	runID := uuid.NewString()

	base := cfg.TempRoot
	if base == "" {
		base = os.TempDir()
	}
	tempRoot := filepath.Join(base, "packsmith-"+runID)
	if err := os.MkdirAll(tempRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root %s: %w", tempRoot, err)
	}

	return &Context{
		Config:   cfg,
		RunID:    runID,
		TempRoot: tempRoot,
		Logger:   logger,
	}, nil
}

// cleanup deletes the staging root.
func (c *Context) cleanup() error {
	return os.RemoveAll(c.TempRoot)
}
