package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/chatflow/pkg/adapters/memory"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

const activeFile = "active.json"

// Store implements ports.FlowRepository using the local filesystem.
// Each flow is a JSON file named after its id; active.json points at the active flow.
// Writes are serialized within the process.
type Store struct {
	BasePath string
	mu       sync.RWMutex
}

type activePointer struct {
	FlowID string `json:"flowId"`
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".chatflow/flows".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".chatflow", "flows")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("flow id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." || id+".json" == activeFile {
		return "", fmt.Errorf("flow id %q is not a valid file name", id)
	}
	return filepath.Join(s.BasePath, id+".json"), nil
}

// List returns all flows ordered by creation time, then id.
func (s *Store) List(ctx context.Context) ([]*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Flow{}, nil
		}
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	active, err := s.activeID()
	if err != nil {
		return nil, err
	}

	flows := []*domain.Flow{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || name == activeFile || strings.HasPrefix(name, "tmp-") {
			continue
		}
		f, err := s.read(filepath.Join(s.BasePath, name))
		if err != nil {
			return nil, err
		}
		f.IsActive = f.ID == active
		flows = append(flows, f)
	}

	memory.SortFlows(flows)
	return flows, nil
}

// Get retrieves a flow from its JSON file.
func (s *Store) Get(ctx context.Context, id string) (*domain.Flow, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.read(path)
	if err != nil {
		return nil, err
	}
	active, err := s.activeID()
	if err != nil {
		return nil, err
	}
	f.IsActive = f.ID == active
	return f, nil
}

// Put persists the flow atomically.
func (s *Store) Put(ctx context.Context, flow *domain.Flow) error {
	path, err := s.path(flow.ID)
	if err != nil {
		return err
	}

	stored := *flow
	stored.IsActive = false
	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flow: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(path, data)
}

// Delete removes the flow file and clears the active pointer if needed.
func (s *Store) Delete(ctx context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to delete flow file: %w", err)
	}

	active, err := s.activeID()
	if err != nil {
		return err
	}
	if active == id {
		if err := os.Remove(filepath.Join(s.BasePath, activeFile)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear active pointer: %w", err)
		}
	}
	return nil
}

// ActiveID reads the active pointer.
func (s *Store) ActiveID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID()
}

// Activate runs guard and rewrites the active pointer under the write lock.
func (s *Store) Activate(ctx context.Context, id string, guard ports.ActivationGuard) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read(path)
	if err != nil {
		return err
	}
	if guard != nil {
		if err := guard(f); err != nil {
			return err
		}
	}

	data, err := json.Marshal(activePointer{FlowID: id})
	if err != nil {
		return fmt.Errorf("failed to marshal active pointer: %w", err)
	}
	return s.writeAtomic(filepath.Join(s.BasePath, activeFile), data)
}

func (s *Store) read(path string) (*domain.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			id := strings.TrimSuffix(filepath.Base(path), ".json")
			return nil, fmt.Errorf("flow %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	var f domain.Flow
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flow %s: %w", path, err)
	}
	return &f, nil
}

func (s *Store) activeID() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.BasePath, activeFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active pointer: %w", err)
	}

	var p activePointer
	if err := json.Unmarshal(data, &p); err != nil {
		return "", fmt.Errorf("failed to unmarshal active pointer: %w", err)
	}
	return p.FlowID, nil
}

// writeAtomic writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) writeAtomic(destPath string, data []byte) error {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure flow directory: %w", err)
	}

	// Same directory keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
