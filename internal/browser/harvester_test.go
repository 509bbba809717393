// File: internal/browser/harvester_test.go
package browser

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sightlinehq/sightline-cli/pkg/enrich"
)

func newTestHarvester(t *testing.T) *Harvester {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHarvester(ctx, zap.NewNop())
	// Exercise the event handlers directly; wiring to a live CDP target
	// is covered by manual runs, not unit tests.
	h.records = make(map[network.RequestID]*enrich.NetworkRecord)
	h.isRunning = true
	return h
}

func imageResponse(id, url, mime string, status int64) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(id),
		Type:      network.ResourceTypeImage,
		Response:  &network.Response{URL: url, MimeType: mime, Status: status},
	}
}

func TestHarvester_RecordsImageTransfers(t *testing.T) {
	h := newTestHarvester(t)

	h.onResponse(imageResponse("1", "https://site.test/a.png", "image/png", 200))
	h.onLoadingFinished(&network.EventLoadingFinished{RequestID: "1"})

	records := h.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "https://site.test/a.png", records[0].URL)
	assert.Equal(t, "image/png", records[0].MimeType)
	assert.Equal(t, int64(200), records[0].StatusCode)
	assert.True(t, records[0].Finished)
}

func TestHarvester_IgnoresNonImageResources(t *testing.T) {
	h := newTestHarvester(t)

	h.onResponse(&network.EventResponseReceived{
		RequestID: "1",
		Type:      network.ResourceTypeDocument,
		Response:  &network.Response{URL: "https://site.test/", MimeType: "text/html", Status: 200},
	})

	assert.Empty(t, h.Records())
}

func TestHarvester_UnfinishedTransferStaysUnfinished(t *testing.T) {
	h := newTestHarvester(t)

	h.onResponse(imageResponse("1", "https://site.test/slow.webp", "image/webp", 200))

	records := h.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Finished)
}

func TestHarvester_PreservesResponseOrder(t *testing.T) {
	h := newTestHarvester(t)

	h.onResponse(imageResponse("a", "https://site.test/1.png", "image/png", 200))
	h.onResponse(imageResponse("b", "https://site.test/2.png", "image/png", 200))
	h.onResponse(imageResponse("c", "https://site.test/3.png", "image/png", 200))
	h.onLoadingFinished(&network.EventLoadingFinished{RequestID: "b"})

	records := h.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "https://site.test/1.png", records[0].URL)
	assert.Equal(t, "https://site.test/2.png", records[1].URL)
	assert.Equal(t, "https://site.test/3.png", records[2].URL)
	assert.True(t, records[1].Finished)
	assert.False(t, records[0].Finished)
}

func TestHarvester_RedirectReusesRequestID(t *testing.T) {
	h := newTestHarvester(t)

	h.onResponse(imageResponse("1", "https://site.test/old.png", "image/png", 302))
	h.onResponse(imageResponse("1", "https://cdn.site.test/new.png", "image/webp", 200))
	h.onLoadingFinished(&network.EventLoadingFinished{RequestID: "1"})

	records := h.Records()
	require.Len(t, records, 1, "a redirect chain is one transfer")
	assert.Equal(t, "https://cdn.site.test/new.png", records[0].URL)
	assert.True(t, records[0].Finished)
}

func TestHarvester_FinishWithoutResponseIsIgnored(t *testing.T) {
	h := newTestHarvester(t)

	h.onLoadingFinished(&network.EventLoadingFinished{RequestID: "ghost"})

	assert.Empty(t, h.Records())
}

func TestCollectScriptEmbedded(t *testing.T) {
	assert.Contains(t, collectScript, "getNodePath")
	assert.Contains(t, collectScript, "isInShadowDOM")
}
