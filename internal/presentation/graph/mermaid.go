package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
)

// maxLabel caps the node text shown next to the id.
const maxLabel = 40

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart for flow.
// It applies semantic styling:
// - Entry: ((Circle))
// - WhatsApp / URL hand-off: [[Subroutine]]
// - Message: [/Parallelogram/]
// - End: ([Stadium])
// - Menu: [Rectangle]
// Option shortcuts (targetNodeId) are drawn dotted, edges solid.
func GenerateMermaid(flow *domain.Flow, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	entryID := ""
	if entry, err := flow.EntryNode(); err == nil {
		entryID = entry.ID
	}

	for _, node := range flow.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == entryID:
			opener, closer = "((", "))"
		case node.Data.ActionType == domain.ActionWhatsApp || node.Data.ActionType == domain.ActionURL:
			opener, closer = "[[", "]]"
		case node.Data.ActionType == domain.ActionMessage:
			opener, closer = "[/", "/]"
		case node.Data.ActionType == domain.ActionEnd:
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label(node), closer)

		for _, opt := range node.Data.Options {
			if opt.TargetNodeID == "" {
				continue
			}
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", safeID, escape(opt.Label), sanitizeMermaidID(opt.TargetNodeID))
		}

		for _, edge := range flow.OutgoingEdges(node.ID) {
			safeTo := sanitizeMermaidID(edge.Target)
			text := edge.Data.OptionLabel
			if opt, ok := node.OptionByID(edge.Data.OptionID); ok {
				text = opt.Label
			}
			if text == "" {
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, safeTo)
				continue
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(text), safeTo)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func label(node domain.Node) string {
	text := strings.Join(strings.Fields(node.Data.Text), " ")
	if text == "" {
		return escape(node.ID)
	}
	if r := []rune(text); len(r) > maxLabel {
		text = string(r[:maxLabel-1]) + "…"
	}
	return escape(node.ID) + "<br/>" + escape(text)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
