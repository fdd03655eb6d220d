package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidationFailed is returned when a flow has blocking structural problems.
	// The concrete error is a *ValidationError carrying the violations.
	ErrValidationFailed = errors.New("validation failed")

	// ErrNotFound is returned for missing flows, nodes or options.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when saving a flow whose id is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidOption is returned when the selected option does not exist on the current node.
	ErrInvalidOption = errors.New("invalid option")

	// ErrBrokenTraversal is returned when an option resolves to no node, usually because
	// the flow was edited after the session started.
	ErrBrokenTraversal = errors.New("broken traversal")

	// ErrSessionEnded is returned when a step is requested on a concluded session.
	ErrSessionEnded = errors.New("session ended")

	// ErrEmptyFlow is returned when a session is started on a flow without an entry node.
	ErrEmptyFlow = errors.New("empty flow")

	// ErrInvalidCursor is returned when a cursor token cannot be decoded or verified.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Severity grades a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ViolationKind names a structural problem found by the validator.
type ViolationKind string

const (
	KindDanglingReference   ViolationKind = "DanglingReference"
	KindDuplicateID         ViolationKind = "DuplicateId"
	KindNoEntryPoint        ViolationKind = "NoEntryPoint"
	KindAmbiguousEntryPoint ViolationKind = "AmbiguousEntryPoint"
	KindUnreachableNode     ViolationKind = "UnreachableNode"
	KindInvalidTerminal     ViolationKind = "InvalidTerminal"
	KindMissingActionValue  ViolationKind = "MissingActionValue"
	KindUnknownActionType   ViolationKind = "UnknownActionType"
	// KindDeadEnd marks a menu node without options: the visitor could neither
	// continue nor be told the session is over.
	KindDeadEnd ViolationKind = "DeadEnd"
)

// Violation is a single problem, tagged with the offending element.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Severity Severity      `json:"severity"`
	NodeID   string        `json:"nodeId,omitempty"`
	EdgeID   string        `json:"edgeId,omitempty"`
	OptionID string        `json:"optionId,omitempty"`
	Message  string        `json:"message"`
}

func (v Violation) String() string {
	var ref []string
	if v.NodeID != "" {
		ref = append(ref, "node="+v.NodeID)
	}
	if v.EdgeID != "" {
		ref = append(ref, "edge="+v.EdgeID)
	}
	if v.OptionID != "" {
		ref = append(ref, "option="+v.OptionID)
	}
	if len(ref) == 0 {
		return fmt.Sprintf("%s: %s", v.Kind, v.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", v.Kind, strings.Join(ref, " "), v.Message)
}

// ValidationError carries the blocking violations that prevented an operation.
type ValidationError struct {
	FlowID     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("flow %q: validation failed: %s", e.FlowID, e.Violations[0])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "flow %q: validation failed with %d violations:\n", e.FlowID, len(e.Violations))
	for i, v := range e.Violations {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, v)
	}
	return sb.String()
}

// Is lets errors.Is match ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Violations returns the violations carried by err, if it is (or wraps) a *ValidationError.
func Violations(err error) []Violation {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Violations
	}
	return nil
}
