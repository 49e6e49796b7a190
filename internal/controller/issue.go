package controller

import (
	"errors"
	"fmt"
	"strings"
)

// IssueKind classifies an Issue.
type IssueKind int

const (
	// Structural issues concern the graph as a whole: cycles, dangling
	// edges, disallowed connections. No processor runs when one is found.
	Structural IssueKind = iota
	// NodeIssue is raised by a single node; the pass carries on.
	NodeIssue
	// Aborted reports a pass interrupted by cancellation.
	Aborted
)

func (k IssueKind) String() string {
	switch k {
	case Structural:
		return "structural"
	case NodeIssue:
		return "node"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("IssueKind(%d)", int(k))
	}
}

// Issue is one reported problem of a pass. NodeID is empty for pass-level
// issues.
type Issue struct {
	Kind     IssueKind
	NodeID   string
	NodeName string
	Reason   string
	Err      error
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("[%s] %s", i.Kind, i.Reason)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Kind, i.NodeName, i.Reason)
}

// IssueList is the ordered result of a pass: node issues in topological
// order, followed by an aborted issue if the pass was cancelled.
type IssueList []Issue

// Empty reports whether the pass was clean.
func (l IssueList) Empty() bool {
	return len(l) == 0
}

// Has reports whether any issue of kind is present.
func (l IssueList) Has(kind IssueKind) bool {
	for _, i := range l {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

// ForNode returns the issues raised by one node.
func (l IssueList) ForNode(nodeID string) IssueList {
	var out IssueList
	for _, i := range l {
		if i.NodeID == nodeID {
			out = append(out, i)
		}
	}
	return out
}

// Err joins the underlying errors, or returns nil for a clean list.
func (l IssueList) Err() error {
	errs := make([]error, 0, len(l))
	for _, i := range l {
		if i.Err != nil {
			errs = append(errs, i.Err)
		} else {
			errs = append(errs, errors.New(i.String()))
		}
	}
	return errors.Join(errs...)
}

func (l IssueList) String() string {
	lines := make([]string, len(l))
	for n, i := range l {
		lines[n] = i.String()
	}
	return strings.Join(lines, "\n")
}

func structuralIssue(err error) Issue {
	return Issue{Kind: Structural, Reason: err.Error(), Err: err}
}

func abortedIssue(err error) Issue {
	return Issue{Kind: Aborted, Reason: "pass aborted: " + err.Error(), Err: err}
}
