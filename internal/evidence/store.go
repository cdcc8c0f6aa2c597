// File: internal/evidence/store.go
// Description: On-disk evidence storage. Every run gets an execution
// directory; artifacts are written as JSON under
// <root>/<execution-id>/<scenario-id>/<step-id>/.
package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/remedy/internal/config"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Store writes run artifacts beneath one execution directory. Safe for
// concurrent use; every write lands in its own file.
type Store struct {
	root        string
	executionID string
	logger      *zap.Logger
}

// NewStore creates the execution directory for this run.
func NewStore(cfg config.EvidenceConfig, logger *zap.Logger) (*Store, error) {
	executionID := uuid.NewString()
	root := filepath.Join(cfg.Dir, executionID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating evidence directory %s: %w", root, err)
	}
	logger.Info("Evidence directory created.", zap.String("path", root))
	return &Store{root: root, executionID: executionID, logger: logger.Named("evidence")}, nil
}

// ExecutionID returns this run's identifier.
func (s *Store) ExecutionID() string { return s.executionID }

// Root returns the execution directory path.
func (s *Store) Root() string { return s.root }

// WriteJSON stores one artifact under the scenario/step path. Writes go to a
// temp file first so a crash never leaves a truncated artifact behind.
func (s *Store) WriteJSON(scenarioID, stepID, name string, v any) error {
	dir := filepath.Join(s.root, sanitize(scenarioID), sanitize(stepID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating step directory %s: %w", dir, err)
	}

	data, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact %s: %w", name, err)
	}

	target := filepath.Join(dir, sanitize(name)+".json")
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", target, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("finalizing artifact %s: %w", target, err)
	}
	s.logger.Debug("Artifact written.", zap.String("path", target))
	return nil
}

// WriteBundle stores several artifacts for one step concurrently. The first
// failure cancels the rest.
func (s *Store) WriteBundle(ctx context.Context, scenarioID, stepID string, artifacts map[string]any) error {
	g, _ := errgroup.WithContext(ctx)
	for name, v := range artifacts {
		g.Go(func() error {
			return s.WriteJSON(scenarioID, stepID, name, v)
		})
	}
	return g.Wait()
}

// sanitize keeps path segments filesystem-safe.
func sanitize(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
