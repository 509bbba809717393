// pkg/enrich/session.go
package enrich

import (
	"context"
	"errors"
)

// Remote failure taxonomy. Both conditions are recoverable: callers branch
// on them locally and continue with the next element, they never abort a
// batch.
var (
	// ErrNodeNotFound means the addressed DOM path no longer resolves to a
	// live node (removed, detached, or re-rendered since discovery).
	ErrNodeNotFound = errors.New("node not found for path")

	// ErrEvaluation means an in-page evaluation threw or the session
	// rejected the call.
	ErrEvaluation = errors.New("page evaluation failed")
)

// NodeID identifies a DOM node on the remote side for the duration of a
// session.
type NodeID int64

// StyleProperty is one raw property declaration, name and value as the
// remote side reports them.
type StyleProperty struct {
	Name  string
	Value string
}

// StyleDeclaration is an ordered property list from a single style source.
type StyleDeclaration struct {
	Properties []StyleProperty
}

// MatchedStyles is the remote side's answer for one node. Any section may
// be nil; not every element has inline style, attribute style, and matched
// rules, and absence is normal rather than an error. Matched rules arrive
// pre-ordered by the remote side so that later entries should win ties.
type MatchedStyles struct {
	Inline     *StyleDeclaration
	Attributes *StyleDeclaration
	Matched    []*StyleDeclaration
}

// Session is the remote instrumentation channel this package drives. It is
// a capability handed into the scheduler per run, never ambient state, so
// tests can substitute doubles that simulate latency and failures
// deterministically. The channel accepts one in-flight exchange at a time;
// callers sequence their requests.
type Session interface {
	// ResolveNodePath resolves a devtools node path to a remote node
	// identifier. Returns ErrNodeNotFound when the path no longer exists.
	ResolveNodePath(ctx context.Context, path string) (NodeID, error)

	// MatchedStylesForNode fetches inline style, attribute style, and the
	// ordered matched stylesheet rules for a node.
	MatchedStylesForNode(ctx context.Context, id NodeID) (*MatchedStyles, error)

	// EvaluateInPage evaluates an expression in page context and decodes
	// the JSON-serializable result into out. Returns an error wrapping
	// ErrEvaluation on page-side exceptions or session errors.
	EvaluateInPage(ctx context.Context, expression string, out any) error
}
