// Package loam imports flows authored as a directory of markdown documents.
//
// Each document is one node: the frontmatter carries the node metadata and the
// markdown body is the node text. The directory is the flow.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// Loader adapts a Loam repository to ports.FlowSource.
type Loader struct {
	Repo   *loam.TypedRepository[NodeMetadata]
	FlowID string
	Name   string
}

// New creates a new Loam adapter producing the flow flowID.
func New(repo *loam.TypedRepository[NodeMetadata], flowID string) *Loader {
	return &Loader{
		Repo:   repo,
		FlowID: flowID,
		Name:   flowID,
	}
}

// Open initializes a read-only Loam repository on dir.
// The flow id is the directory name.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve flow directory: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init loam repository: %w", err)
	}

	return New(loam.NewTypedRepository[NodeMetadata](repo), filepath.Base(absPath)), nil
}

// Flows implements ports.FlowSource.
func (l *Loader) Flows(ctx context.Context) ([]*domain.Flow, error) {
	f, err := l.Flow(ctx)
	if err != nil {
		return nil, err
	}
	return []*domain.Flow{f}, nil
}

type orderedNode struct {
	order int
	node  domain.Node
	via   []domain.Edge
}

// Flow assembles the flow from every document in the repository.
func (l *Loader) Flow(ctx context.Context) (*domain.Flow, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	nodes := make([]orderedNode, 0, len(docs))

	for _, doc := range docs {
		meta := doc.Data

		rawID := meta.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID

		node, edges, err := buildNode(id, meta, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.ID, err)
		}
		nodes = append(nodes, orderedNode{order: meta.Order, node: node, via: edges})
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].order != nodes[j].order {
			return nodes[i].order < nodes[j].order
		}
		return nodes[i].node.ID < nodes[j].node.ID
	})

	flow := &domain.Flow{ID: l.FlowID, Name: l.Name}
	for _, n := range nodes {
		flow.Nodes = append(flow.Nodes, n.node)
		flow.Edges = append(flow.Edges, n.via...)
	}
	return flow, nil
}

func buildNode(id string, meta NodeMetadata, content string) (domain.Node, []domain.Edge, error) {
	node := domain.Node{
		ID:   id,
		Type: meta.Type,
		Data: domain.NodeData{
			Text:        strings.TrimSpace(content),
			ActionType:  domain.ActionType(strings.ToLower(meta.Action)),
			ActionValue: meta.Value,
			IsEntry:     meta.Entry,
		},
	}
	if node.Type == "" {
		node.Type = "menu"
	}

	pos, err := decodePosition(meta.Position)
	if err != nil {
		return node, nil, err
	}
	node.Position = pos

	var edges []domain.Edge
	for _, opt := range meta.Options {
		if opt.To != "" && opt.Via != "" {
			return node, nil, fmt.Errorf("option %s sets both to and via", opt.ID)
		}
		node.Data.Options = append(node.Data.Options, domain.Option{
			ID:           opt.ID,
			Label:        opt.Label,
			TargetNodeID: trimExtension(opt.To),
		})
		if opt.Via != "" {
			edges = append(edges, domain.Edge{
				ID:     id + ":" + opt.ID,
				Source: id,
				Target: trimExtension(opt.Via),
				Data:   domain.EdgeData{OptionID: opt.ID, OptionLabel: opt.Label},
			})
		}
	}

	return node, edges, nil
}

func decodePosition(raw any) (domain.Position, error) {
	var pos domain.Position
	switch v := raw.(type) {
	case nil:
		return pos, nil
	case []any:
		if len(v) != 2 {
			return pos, fmt.Errorf("position list must have two elements")
		}
		raw = map[string]any{"x": v[0], "y": v[1]}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &pos,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return pos, err
	}
	if err := dec.Decode(raw); err != nil {
		return pos, fmt.Errorf("invalid position: %w", err)
	}
	return pos, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
