package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/chatflow/pkg/adapters/loam"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/flowfile"
	"github.com/aretw0/chatflow/pkg/ports"
)

// SourceFor picks the loader for path: a directory holding markdown nodes is a
// Loam flow; anything else is read as JSON/YAML flow files.
func SourceFor(path string) (ports.FlowSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() && hasMarkdown(path) {
		return loam.Open(path)
	}
	return flowfile.NewSource(path), nil
}

// LoadFlows reads every flow under the given paths.
func LoadFlows(ctx context.Context, paths ...string) ([]*domain.Flow, error) {
	var flows []*domain.Flow
	for _, p := range paths {
		src, err := SourceFor(p)
		if err != nil {
			return nil, err
		}
		found, err := src.Flows(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
		flows = append(flows, found...)
	}
	return flows, nil
}

func hasMarkdown(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			return true
		}
	}
	return false
}
