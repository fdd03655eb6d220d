package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/chatflow/pkg/domain"
)

// Report is the outcome of a validation pass.
type Report struct {
	FlowID     string             `json:"flowId"`
	Violations []domain.Violation `json:"violations"`
}

// Valid reports whether the flow can be activated (no blocking violations).
func (r Report) Valid() bool {
	return len(r.Blocking()) == 0
}

// Blocking returns the error-level violations.
func (r Report) Blocking() []domain.Violation {
	return r.filter(domain.SeverityError)
}

// Warnings returns the warning-level violations.
func (r Report) Warnings() []domain.Violation {
	return r.filter(domain.SeverityWarning)
}

// Err returns a *domain.ValidationError with the blocking violations, or nil.
func (r Report) Err() error {
	blocking := r.Blocking()
	if len(blocking) == 0 {
		return nil
	}
	return &domain.ValidationError{FlowID: r.FlowID, Violations: blocking}
}

func (r Report) filter(sev domain.Severity) []domain.Violation {
	var out []domain.Violation
	for _, v := range r.Violations {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

// Guard validates the flow and returns the blocking violations as an error.
// Its signature matches ports.ActivationGuard.
func Guard(flow *domain.Flow) error {
	return Validate(flow).Err()
}

// Validate runs every structural check over the flow and collects all violations.
// It never stops at the first problem so the authoring UI can highlight everything at once.
// Cycles are allowed and never reported.
func Validate(flow *domain.Flow) Report {
	c := &checker{flow: flow, nodes: make(map[string]*domain.Node)}
	for i := range flow.Nodes {
		n := &flow.Nodes[i]
		if _, ok := c.nodes[n.ID]; !ok {
			c.nodes[n.ID] = n
		}
	}

	c.checkReferences()
	c.checkUniqueness()
	entry := c.checkEntry()
	c.checkReachability(entry)
	c.checkTerminals()

	return Report{FlowID: flow.ID, Violations: c.violations}
}

type checker struct {
	flow       *domain.Flow
	nodes      map[string]*domain.Node
	violations []domain.Violation
}

func (c *checker) add(v domain.Violation) {
	if v.Severity == "" {
		v.Severity = domain.SeverityError
	}
	c.violations = append(c.violations, v)
}

func (c *checker) exists(id string) bool {
	_, ok := c.nodes[id]
	return ok
}

// checkReferences reports edges and option shortcuts pointing at missing nodes,
// edges tagged with an option their source node does not have, and options
// that lead nowhere (no shortcut and no tagged edge).
func (c *checker) checkReferences() {
	for _, e := range c.flow.Edges {
		if !c.exists(e.Source) {
			c.add(domain.Violation{
				Kind:    domain.KindDanglingReference,
				EdgeID:  e.ID,
				NodeID:  e.Source,
				Message: fmt.Sprintf("edge source %q does not exist", e.Source),
			})
		}
		if !c.exists(e.Target) {
			c.add(domain.Violation{
				Kind:    domain.KindDanglingReference,
				EdgeID:  e.ID,
				NodeID:  e.Target,
				Message: fmt.Sprintf("edge target %q does not exist", e.Target),
			})
		}
		if e.Data.OptionID == "" {
			continue
		}
		if src, ok := c.nodes[e.Source]; ok {
			if _, found := src.OptionByID(e.Data.OptionID); !found {
				c.add(domain.Violation{
					Kind:     domain.KindDanglingReference,
					EdgeID:   e.ID,
					NodeID:   e.Source,
					OptionID: e.Data.OptionID,
					Message:  fmt.Sprintf("edge references option %q missing on node %q", e.Data.OptionID, e.Source),
				})
			}
		}
	}

	for _, n := range c.flow.Nodes {
		for _, opt := range n.Data.Options {
			switch {
			case opt.TargetNodeID != "":
				if !c.exists(opt.TargetNodeID) {
					c.add(domain.Violation{
						Kind:     domain.KindDanglingReference,
						NodeID:   n.ID,
						OptionID: opt.ID,
						Message:  fmt.Sprintf("option target %q does not exist", opt.TargetNodeID),
					})
				}
			case presentsOptions(n.Data.ActionType):
				if _, ok := c.flow.EdgeForOption(n.ID, opt.ID); !ok {
					c.add(domain.Violation{
						Kind:     domain.KindDanglingReference,
						NodeID:   n.ID,
						OptionID: opt.ID,
						Message:  fmt.Sprintf("option %q has no target node and no edge", opt.ID),
					})
				}
			}
		}
	}
}

func (c *checker) checkUniqueness() {
	seenNodes := make(map[string]bool)
	for _, n := range c.flow.Nodes {
		if n.ID == "" {
			c.add(domain.Violation{Kind: domain.KindDuplicateID, Message: "node without id"})
			continue
		}
		if seenNodes[n.ID] {
			c.add(domain.Violation{
				Kind:    domain.KindDuplicateID,
				NodeID:  n.ID,
				Message: fmt.Sprintf("node id %q is used more than once", n.ID),
			})
		}
		seenNodes[n.ID] = true

		seenOpts := make(map[string]bool)
		for _, opt := range n.Data.Options {
			if seenOpts[opt.ID] {
				c.add(domain.Violation{
					Kind:     domain.KindDuplicateID,
					NodeID:   n.ID,
					OptionID: opt.ID,
					Message:  fmt.Sprintf("option id %q is used more than once on node %q", opt.ID, n.ID),
				})
			}
			seenOpts[opt.ID] = true
		}
	}

	seenEdges := make(map[string]bool)
	for _, e := range c.flow.Edges {
		if e.ID == "" {
			continue
		}
		if seenEdges[e.ID] {
			c.add(domain.Violation{
				Kind:    domain.KindDuplicateID,
				EdgeID:  e.ID,
				Message: fmt.Sprintf("edge id %q is used more than once", e.ID),
			})
		}
		seenEdges[e.ID] = true
	}
}

// checkEntry returns the entry node id, or "" when there is not exactly one.
func (c *checker) checkEntry() string {
	candidates := c.flow.EntryCandidates()
	switch len(candidates) {
	case 1:
		return candidates[0]
	case 0:
		c.add(domain.Violation{
			Kind:    domain.KindNoEntryPoint,
			Message: "no node qualifies as entry point (every node has an incoming reference)",
		})
	default:
		for _, id := range candidates {
			c.add(domain.Violation{
				Kind:    domain.KindAmbiguousEntryPoint,
				NodeID:  id,
				Message: fmt.Sprintf("entry point is ambiguous between %s", strings.Join(candidates, ", ")),
			})
		}
	}
	return ""
}

func (c *checker) checkReachability(entry string) {
	if entry == "" {
		return
	}

	visited := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range c.flow.Successors(current) {
			if visited[next] || !c.exists(next) {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}

	for _, n := range c.flow.Nodes {
		if n.ID != "" && !visited[n.ID] {
			c.add(domain.Violation{
				Kind:     domain.KindUnreachableNode,
				Severity: domain.SeverityWarning,
				NodeID:   n.ID,
				Message:  fmt.Sprintf("node %q cannot be reached from entry %q", n.ID, entry),
			})
			visited[n.ID] = true
		}
	}
}

func (c *checker) checkTerminals() {
	for _, n := range c.flow.Nodes {
		switch n.Data.ActionType {
		case domain.ActionEnd:
			if len(n.Data.Options) > 0 {
				c.add(domain.Violation{
					Kind:    domain.KindInvalidTerminal,
					NodeID:  n.ID,
					Message: fmt.Sprintf("end node has %d options", len(n.Data.Options)),
				})
			}
			for _, e := range c.flow.OutgoingEdges(n.ID) {
				c.add(domain.Violation{
					Kind:    domain.KindInvalidTerminal,
					NodeID:  n.ID,
					EdgeID:  e.ID,
					Message: fmt.Sprintf("end node has an outgoing edge to %q", e.Target),
				})
			}
		case domain.ActionNone:
			if len(n.Data.Options) == 0 {
				c.add(domain.Violation{
					Kind:    domain.KindDeadEnd,
					NodeID:  n.ID,
					Message: "menu node has no options; use a message or end node to finish",
				})
			}
		case domain.ActionWhatsApp, domain.ActionURL:
			if strings.TrimSpace(n.Data.ActionValue) == "" {
				c.add(domain.Violation{
					Kind:    domain.KindMissingActionValue,
					NodeID:  n.ID,
					Message: fmt.Sprintf("%s action requires a non-empty actionValue", n.Data.ActionType),
				})
			} else if n.Data.ActionType == domain.ActionWhatsApp && !strings.ContainsFunc(n.Data.ActionValue, isDigit) {
				c.add(domain.Violation{
					Kind:    domain.KindMissingActionValue,
					NodeID:  n.ID,
					Message: fmt.Sprintf("whatsapp actionValue %q has no phone digits", n.Data.ActionValue),
				})
			}
		default:
			if !n.Data.ActionType.Valid() {
				c.add(domain.Violation{
					Kind:    domain.KindUnknownActionType,
					NodeID:  n.ID,
					Message: fmt.Sprintf("unknown action type %q", n.Data.ActionType),
				})
			}
		}
	}
}

// presentsOptions reports whether the visitor can pick the options of a node
// with this action. Options on other nodes are never followed.
func presentsOptions(a domain.ActionType) bool {
	return a == domain.ActionNone || a == domain.ActionMessage
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
