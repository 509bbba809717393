// File: internal/browser/discover.go
package browser

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/sightlinehq/sightline-cli/pkg/enrich"
)

// collectScript runs in page context and returns the raw image element
// records. Resolution of natural sizes and CSS sizing happens afterwards
// over the protocol, not in the page.
//
//go:embed collect.js
var collectScript string

// DiscoverImageElements evaluates the collector in the current document
// and returns the discovered elements in document order.
func (s *Session) DiscoverImageElements(ctx context.Context) ([]*enrich.ImageElementRecord, error) {
	var elements []*enrich.ImageElementRecord
	if err := s.EvaluateInPage(ctx, collectScript, &elements); err != nil {
		return nil, fmt.Errorf("image element discovery failed: %w", err)
	}
	return elements, nil
}
