// -- internal/audit/pipeline_test.go --
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/sightlinehq/sightline-cli/internal/config"
	"github.com/sightlinehq/sightline-cli/pkg/enrich"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePageSession simulates one browser tab for pipeline tests.
type fakePageSession struct {
	mu sync.Mutex

	navigated []string
	closed    bool

	navigateErr error
	discoverErr error

	elements []*enrich.ImageElementRecord
	records  []enrich.NetworkRecord

	styles *enrich.MatchedStyles
}

func (f *fakePageSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return f.navigateErr
}

func (f *fakePageSession) DiscoverImageElements(ctx context.Context) ([]*enrich.ImageElementRecord, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.elements, nil
}

func (f *fakePageSession) NetworkRecords() []enrich.NetworkRecord {
	return f.records
}

func (f *fakePageSession) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePageSession) ResolveNodePath(ctx context.Context, path string) (enrich.NodeID, error) {
	return 1, nil
}

func (f *fakePageSession) MatchedStylesForNode(ctx context.Context, id enrich.NodeID) (*enrich.MatchedStyles, error) {
	if f.styles == nil {
		return &enrich.MatchedStyles{}, nil
	}
	return f.styles, nil
}

func (f *fakePageSession) EvaluateInPage(ctx context.Context, expression string, out any) error {
	return json.Unmarshal([]byte(`{"naturalWidth":800,"naturalHeight":600}`), out)
}

func testConfig() *config.Config {
	return &config.Config{
		Audit: config.AuditConfig{
			EnrichmentBudget: 5000 * time.Millisecond,
			Concurrency:      2,
			Format:           "json",
		},
	}
}

func strdecl(name, value string) *enrich.StyleDeclaration {
	return &enrich.StyleDeclaration{Properties: []enrich.StyleProperty{{Name: name, Value: value}}}
}

func TestPipeline_RunSingleTarget(t *testing.T) {
	sess := &fakePageSession{
		elements: []*enrich.ImageElementRecord{
			{
				Src:      "https://site.test/hero.jpg",
				Srcset:   "hero.jpg 1x, hero@2x.jpg 2x",
				NodePath: "0,HTML,1,BODY,0,IMG",
			},
			{
				Src:      "https://site.test/logo.png",
				NodePath: "0,HTML,1,BODY,1,IMG",
			},
		},
		records: []enrich.NetworkRecord{
			{URL: "https://site.test/logo.png", MimeType: "image/png", Finished: true, StatusCode: 200},
			{URL: "https://site.test/hero.jpg", MimeType: "image/webp", Finished: true, StatusCode: 200},
		},
		styles: &enrich.MatchedStyles{Inline: strdecl("width", "100%")},
	}
	factory := func(ctx context.Context) (PageSession, error) { return sess, nil }

	pipeline := NewPipeline(testConfig(), factory, zap.NewNop())
	reports, err := pipeline.Run(context.Background(), []string{"https://site.test"})

	require.NoError(t, err)
	require.Len(t, reports, 1)
	report := reports[0]

	assert.Equal(t, []string{"https://site.test"}, sess.navigated)
	assert.True(t, sess.closed)
	assert.Equal(t, 2, report.Summary.TotalElements)
	assert.Equal(t, 2, report.Summary.WithNetworkMatch)
	assert.Equal(t, 1, report.Summary.WithNaturalSize, "only the srcset element is measured")
	assert.Equal(t, 2, report.Summary.Enrichment.Resolutions)

	// The srcset element got an in-page measurement.
	hero := report.Elements[0]
	require.NotNil(t, hero.NaturalWidth)
	assert.Equal(t, int64(800), *hero.NaturalWidth)
	assert.Equal(t, "webp", hero.DeliveredFormat)

	// Both elements got CSS sizing from the inline declaration.
	require.NotNil(t, hero.CSSWidth)
	assert.Equal(t, "100%", *hero.CSSWidth)
}

func TestPipeline_RunMultipleTargets(t *testing.T) {
	var mu sync.Mutex
	opened := 0
	factory := func(ctx context.Context) (PageSession, error) {
		mu.Lock()
		opened++
		mu.Unlock()
		return &fakePageSession{}, nil
	}

	pipeline := NewPipeline(testConfig(), factory, zap.NewNop())
	reports, err := pipeline.Run(context.Background(), []string{
		"https://one.test", "https://two.test", "https://three.test",
	})

	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, 3, opened, "each target gets its own session")
	// Report order matches target order regardless of completion order.
	assert.Equal(t, "https://one.test", reports[0].Target)
	assert.Equal(t, "https://three.test", reports[2].Target)
}

func TestPipeline_NavigationFailureFailsRun(t *testing.T) {
	factory := func(ctx context.Context) (PageSession, error) {
		return &fakePageSession{navigateErr: errors.New("dns lookup failed")}, nil
	}

	pipeline := NewPipeline(testConfig(), factory, zap.NewNop())
	_, err := pipeline.Run(context.Background(), []string{"https://nowhere.test"})

	assert.Error(t, err)
}

func TestPipeline_DiscoveryFailureYieldsEmptyReport(t *testing.T) {
	sess := &fakePageSession{discoverErr: errors.New("evaluation rejected")}
	factory := func(ctx context.Context) (PageSession, error) { return sess, nil }

	pipeline := NewPipeline(testConfig(), factory, zap.NewNop())
	reports, err := pipeline.Run(context.Background(), []string{"https://site.test"})

	require.NoError(t, err, "a page with no readable DOM still yields a report")
	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].Summary.TotalElements)
	assert.True(t, sess.closed)
}

func TestPipeline_SessionFactoryFailure(t *testing.T) {
	factory := func(ctx context.Context) (PageSession, error) {
		return nil, errors.New("browser not available")
	}

	pipeline := NewPipeline(testConfig(), factory, zap.NewNop())
	_, err := pipeline.Run(context.Background(), []string{"https://site.test"})

	assert.Error(t, err)
}
