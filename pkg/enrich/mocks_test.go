// pkg/enrich/mocks_test.go
package enrich

import (
	"context"
	"strings"
	"time"
)

// fakeSession is a deterministic stand-in for the remote instrumentation
// channel. It counts calls and can simulate latency and the full failure
// taxonomy.
type fakeSession struct {
	resolveCalls int
	styleCalls   int
	evalCalls    int
	evalExprs    []string

	resolveErr   error
	resolveDelay time.Duration
	nodeID       NodeID

	styles   *MatchedStyles
	styleErr error

	evalErr    error
	evalResult string // JSON payload decoded into the caller's out value
}

func (f *fakeSession) ResolveNodePath(ctx context.Context, path string) (NodeID, error) {
	f.resolveCalls++
	if f.resolveDelay > 0 {
		time.Sleep(f.resolveDelay)
	}
	if f.resolveErr != nil {
		return 0, f.resolveErr
	}
	return f.nodeID, nil
}

func (f *fakeSession) MatchedStylesForNode(ctx context.Context, id NodeID) (*MatchedStyles, error) {
	f.styleCalls++
	if f.styleErr != nil {
		return nil, f.styleErr
	}
	return f.styles, nil
}

func (f *fakeSession) EvaluateInPage(ctx context.Context, expression string, out any) error {
	f.evalCalls++
	f.evalExprs = append(f.evalExprs, expression)
	if f.evalErr != nil {
		return f.evalErr
	}
	payload := f.evalResult
	if payload == "" {
		payload = `{"naturalWidth":640,"naturalHeight":480}`
	}
	return json.Unmarshal([]byte(payload), out)
}

// evaluatedURL reports whether any issued evaluation mentions url.
func (f *fakeSession) evaluatedURL(url string) bool {
	for _, expr := range f.evalExprs {
		if strings.Contains(expr, url) {
			return true
		}
	}
	return false
}

func declaration(pairs ...string) *StyleDeclaration {
	decl := &StyleDeclaration{}
	for i := 0; i+1 < len(pairs); i += 2 {
		decl.Properties = append(decl.Properties, StyleProperty{Name: pairs[i], Value: pairs[i+1]})
	}
	return decl
}
