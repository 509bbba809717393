// File: internal/browser/harvester.go
package browser

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sightlinehq/sightline-cli/pkg/enrich"
)

// Harvester listens to CDP network events for the lifetime of a session
// and accumulates the image transfers the enrichment index is built from.
// A transfer only counts as finished once loadingFinished arrives; a
// response that never finishes (aborted, failed) stays ineligible and is
// filtered out downstream.
type Harvester struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu        sync.Mutex
	records   map[network.RequestID]*enrich.NetworkRecord
	order     []network.RequestID
	isRunning bool
}

// NewHarvester creates a harvester bound to a session context.
func NewHarvester(sessionCtx context.Context, logger *zap.Logger) *Harvester {
	ctx, cancel := context.WithCancel(sessionCtx)
	return &Harvester{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.Named("harvester"),
	}
}

// Start enables the network domain and begins recording.
func (h *Harvester) Start() error {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return nil
	}
	h.records = make(map[network.RequestID]*enrich.NetworkRecord)
	h.order = nil
	h.isRunning = true
	// Release before touching the protocol: listener callbacks take the
	// same lock and run on the target's event loop.
	h.mu.Unlock()

	chromedp.ListenTarget(h.ctx, func(ev any) {
		switch ev := ev.(type) {
		case *network.EventResponseReceived:
			h.onResponse(ev)
		case *network.EventLoadingFinished:
			h.onLoadingFinished(ev)
		}
	})

	if err := chromedp.Run(h.ctx, network.Enable()); err != nil {
		h.mu.Lock()
		h.isRunning = false
		h.mu.Unlock()
		return err
	}
	return nil
}

// Stop halts recording. Records collected so far remain readable.
func (h *Harvester) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.isRunning {
		return
	}
	h.cancel()
	h.isRunning = false
}

// Records returns a snapshot of the observed image transfers in the order
// their responses arrived.
func (h *Harvester) Records() []enrich.NetworkRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]enrich.NetworkRecord, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, *h.records[id])
	}
	return out
}

func (h *Harvester) onResponse(ev *network.EventResponseReceived) {
	if ev.Type != network.ResourceTypeImage || ev.Response == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, seen := h.records[ev.RequestID]; !seen {
		h.order = append(h.order, ev.RequestID)
	}
	// A redirect chain re-reports the same request ID; the last response
	// describes what was actually delivered.
	h.records[ev.RequestID] = &enrich.NetworkRecord{
		URL:        ev.Response.URL,
		MimeType:   ev.Response.MimeType,
		StatusCode: ev.Response.Status,
	}
}

func (h *Harvester) onLoadingFinished(ev *network.EventLoadingFinished) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec, ok := h.records[ev.RequestID]; ok {
		rec.Finished = true
	}
}
