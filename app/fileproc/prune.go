package fileproc

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Pruner removes harvest scratch directories. A fixed set of protected
// paths is refused unconditionally: a temp-naming bug or a misconfigured
// source must never be able to delete the root or a home directory.
type Pruner struct {
	protected map[string]struct{}
}

// NewPruner creates a pruner refusing the given protected paths
func NewPruner(protected []string) *Pruner {
	set := make(map[string]struct{}, len(protected))
	for _, p := range protected {
		set[filepath.Clean(p)] = struct{}{}
	}
	return &Pruner{protected: set}
}

// Run recursively deletes path unless it is protected. Refusals and
// removal failures are logged but never surfaced: cleanup is best effort
// and must not fail the harvest.
func (p *Pruner) Run(path string) {
	if path == "" {
		return
	}

	if _, found := p.protected[filepath.Clean(path)]; found {
		slog.Error("Refusing to remove protected directory", "path", path)
		return
	}

	slog.Debug("Removing directory", "path", path)
	if err := os.RemoveAll(path); err != nil {
		slog.Error("Failed to remove directory", "path", path, "error", err)
	}
}
