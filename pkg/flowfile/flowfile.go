// Package flowfile reads and writes flow definitions as YAML or JSON documents.
//
// JSON is the wire shape of the authoring UI and is decoded leniently, since
// graph editors add layout fields of their own. YAML is hand-written and is
// decoded strictly so typos surface as errors.
package flowfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format is a serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported flow file extension %q", filepath.Ext(path))
	}
}

// Parse decodes one flow.
func Parse(data []byte, format Format) (*domain.Flow, error) {
	var flow domain.Flow
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &flow); err != nil {
			return nil, fmt.Errorf("failed to decode json flow: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&flow); err != nil {
			return nil, fmt.Errorf("failed to decode yaml flow: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return &flow, nil
}

// Marshal encodes one flow.
func Marshal(flow *domain.Flow, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(flow, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(flow); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// ReadFile loads a flow file. A missing id defaults to the file name.
func ReadFile(path string) (*domain.Flow, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	flow, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if flow.ID == "" {
		flow.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if flow.Name == "" {
		flow.Name = flow.ID
	}
	return flow, nil
}

// WriteFile writes a flow in the format implied by the extension.
func WriteFile(path string, flow *domain.Flow) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(flow, format)
	if err != nil {
		return fmt.Errorf("failed to encode flow %s: %w", flow.ID, err)
	}
	return os.WriteFile(path, data, 0644)
}

// Source implements ports.FlowSource over files and directories.
// Directories contribute every .json, .yaml and .yml file they contain (not recursive).
type Source struct {
	paths []string
}

// NewSource creates a Source.
func NewSource(paths ...string) *Source {
	return &Source{paths: paths}
}

// Flows reads every flow file, in path order.
func (s *Source) Flows(ctx context.Context) ([]*domain.Flow, error) {
	var files []string
	for _, p := range s.paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, err := FormatFromPath(e.Name()); err == nil {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	flows := make([]*domain.Flow, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		flow, err := ReadFile(f)
		if err != nil {
			return nil, err
		}
		flows = append(flows, flow)
	}
	return flows, nil
}
