// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/css"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sightlinehq/sightline-cli/internal/config"
	"github.com/sightlinehq/sightline-cli/pkg/enrich"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ensure Session implements the remote channel the enrichment core drives
var _ enrich.Session = (*Session)(nil)

// Session is one isolated browser tab. It implements enrich.Session over
// CDP and additionally owns navigation, network harvesting, and element
// discovery for the audit pipeline. The enrichment core drives it
// sequentially; one exchange is in flight at a time.
type Session struct {
	cfg    *config.Config
	logger *zap.Logger

	tabCtx    context.Context
	tabCancel context.CancelFunc
	harvester *Harvester

	mu       sync.Mutex
	domReady bool
	closed   bool
}

func newSession(allocCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(allocCtx)
	s := &Session{
		cfg:       cfg,
		logger:    logger.Named("session"),
		tabCtx:    tabCtx,
		tabCancel: cancel,
		harvester: NewHarvester(tabCtx, logger),
	}

	if err := s.harvester.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start network harvest: %w", err)
	}
	return s, nil
}

// Navigate loads a URL and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Network.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			if s.cfg.Browser.DisableCache {
				return network.SetCacheDisabled(true).Do(ctx)
			}
			return nil
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Let late image loads and async layout settle.
		chromedp.Sleep(s.cfg.Network.PostLoadWait),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	// Navigation invalidates any previously pushed DOM state.
	s.mu.Lock()
	s.domReady = false
	s.mu.Unlock()
	return nil
}

// NetworkRecords returns the transfers observed since the session opened,
// in traversal order.
func (s *Session) NetworkRecords() []enrich.NetworkRecord {
	return s.harvester.Records()
}

// ResolveNodePath resolves a devtools node path to a node identifier.
func (s *Session) ResolveNodePath(ctx context.Context, path string) (enrich.NodeID, error) {
	if err := s.ensureStyleDomains(ctx); err != nil {
		return 0, err
	}

	var id cdp.NodeID
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		nodeID, err := dom.PushNodeByPathToFrontend(path).Do(ctx)
		if err != nil {
			return err
		}
		id = nodeID
		return nil
	}))
	if err != nil {
		// The distinction between "path gone" and other command failures
		// is not reliable across browser versions; both mean no data for
		// this element.
		return 0, fmt.Errorf("%w: %s: %v", enrich.ErrNodeNotFound, path, err)
	}
	return enrich.NodeID(id), nil
}

// MatchedStylesForNode fetches inline style, attribute style, and matched
// rules for a node, preserving the rule order the browser supplies.
func (s *Session) MatchedStylesForNode(ctx context.Context, id enrich.NodeID) (*enrich.MatchedStyles, error) {
	res := new(css.GetMatchedStylesForNodeReturns)
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		params := &css.GetMatchedStylesForNodeParams{NodeID: cdp.NodeID(id)}
		return cdp.Execute(ctx, css.CommandGetMatchedStylesForNode, params, res)
	}))
	if err != nil {
		return nil, fmt.Errorf("matched styles fetch for node %d failed: %w", id, err)
	}

	styles := &enrich.MatchedStyles{
		Inline:     styleDeclaration(res.InlineStyle),
		Attributes: styleDeclaration(res.AttributesStyle),
	}
	for _, match := range res.MatchedCSSRules {
		if match == nil || match.Rule == nil {
			continue
		}
		if decl := styleDeclaration(match.Rule.Style); decl != nil {
			styles.Matched = append(styles.Matched, decl)
		}
	}
	return styles, nil
}

// EvaluateInPage evaluates an expression in page context, awaiting
// promises, and decodes the JSON result into out.
func (s *Session) EvaluateInPage(ctx context.Context, expression string, out any) error {
	var value []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, exception, err := runtime.Evaluate(expression).
			WithAwaitPromise(true).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return exception
		}
		if obj != nil {
			value = obj.Value
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("%w: %v", enrich.ErrEvaluation, err)
	}
	if out == nil || len(value) == 0 {
		return nil
	}
	if err := json.Unmarshal(value, out); err != nil {
		return fmt.Errorf("%w: decoding result: %v", enrich.ErrEvaluation, err)
	}
	return nil
}

// Close tears down the tab and waits briefly for it to terminate.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.harvester.Stop()
	s.tabCancel()

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	select {
	case <-s.tabCtx.Done():
		s.logger.Debug("Session closed.")
	case <-waitCtx.Done():
		s.logger.Warn("Deadline exceeded waiting for session to close.", zap.Error(waitCtx.Err()))
	}
	return nil
}

// ensureStyleDomains enables the DOM and CSS domains and pulls the current
// document so node paths can be pushed against it. Runs once per loaded
// document.
func (s *Session) ensureStyleDomains(ctx context.Context) error {
	s.mu.Lock()
	ready := s.domReady
	s.mu.Unlock()
	if ready {
		return nil
	}

	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.Enable().Do(ctx); err != nil {
			return err
		}
		if err := css.Enable().Do(ctx); err != nil {
			return err
		}
		_, err := dom.GetDocument().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("enabling style domains failed: %w", err)
	}

	s.mu.Lock()
	s.domReady = true
	s.mu.Unlock()
	return nil
}

// run executes a CDP action against the tab with the per-call timeout,
// honoring cancellation of the caller's context.
func (s *Session) run(ctx context.Context, action chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.Network.CallTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(callCtx, action)
}

// styleDeclaration flattens a CDP style object into the core's declaration
// form. nil in, nil out; a missing section is normal.
func styleDeclaration(style *css.Style) *enrich.StyleDeclaration {
	if style == nil {
		return nil
	}
	decl := &enrich.StyleDeclaration{}
	for _, prop := range style.CSSProperties {
		if prop == nil {
			continue
		}
		decl.Properties = append(decl.Properties, enrich.StyleProperty{
			Name:  prop.Name,
			Value: prop.Value,
		})
	}
	return decl
}
