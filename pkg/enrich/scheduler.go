// pkg/enrich/scheduler.go
package enrich

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBudget caps the cumulative wall-clock time spent on source-rule
// resolutions within one audit run. On a slow remote channel a long
// element list would otherwise stall the audit indefinitely.
const DefaultBudget = 5000 * time.Millisecond

// naturalSizeExpression loads a resource through the page's own image
// decoder and reads its intrinsic dimensions. Markup alone cannot tell us
// which srcset/picture candidate the browser chose, so the measurement has
// to happen in page context.
const naturalSizeExpression = `(function(url) {
  return new Promise((resolve, reject) => {
    const img = new Image();
    img.addEventListener('load', () => {
      resolve({naturalWidth: img.naturalWidth, naturalHeight: img.naturalHeight});
    });
    img.addEventListener('error', () => reject(new Error('image load failed: ' + url)));
    img.src = url;
  });
})(%s)`

// Summary is the per-run accounting the scheduler keeps, surfaced in the
// audit report.
type Summary struct {
	Resolutions        int           `json:"resolutions"`
	SkippedResolutions int           `json:"skippedResolutions"`
	Measurements       int           `json:"measurements"`
	CacheHits          int           `json:"cacheHits"`
	MeasurementErrors  int           `json:"measurementErrors"`
	BudgetSpent        time.Duration `json:"budgetSpent"`
}

// EnrichmentScheduler decides, per element, whether natural-size
// measurement and source-rule resolution are needed and executes them
// sequentially against the remote channel under a shared elapsed-time
// budget. Construct one scheduler per audit run: the cache and the budget
// counter are run-scoped, so concurrent or repeated runs never leak state
// into each other.
type EnrichmentScheduler struct {
	log      *zap.Logger
	resolver *SourceRuleResolver
	cache    *NaturalSizeCache

	budget  time.Duration
	summary Summary
}

// NewEnrichmentScheduler creates a scheduler for one audit run. A zero or
// negative budget disables all source-rule resolutions for the run.
func NewEnrichmentScheduler(budget time.Duration, cache *NaturalSizeCache, logger *zap.Logger) *EnrichmentScheduler {
	if cache == nil {
		cache = NewNaturalSizeCache()
	}
	return &EnrichmentScheduler{
		log:      logger.Named("enrichment"),
		resolver: NewSourceRuleResolver(logger),
		cache:    cache,
		budget:   budget,
	}
}

// Enrich processes elements in list order, mutating each record in place.
// It completes rather than fails: individual remote errors are absorbed at
// their call sites, and elements that could only be partially enriched are
// left with their unknown fields unset.
func (s *EnrichmentScheduler) Enrich(ctx context.Context, sess Session, elements []*ImageElementRecord, networkIndex map[string]NetworkRecord) {
	for _, el := range elements {
		if el == nil {
			continue
		}

		if rec, ok := networkIndex[el.Src]; ok {
			r := rec
			el.Network = &r
		}

		if s.needsSourceRules(el) {
			// The budget is checked once per candidate, before issuing the
			// calls. A resolution already in flight is never interrupted;
			// its full duration accrues after it completes, failures
			// included.
			if s.summary.BudgetSpent >= s.budget {
				s.summary.SkippedResolutions++
			} else {
				start := time.Now()
				s.resolver.Resolve(ctx, sess, el)
				s.summary.BudgetSpent += time.Since(start)
				s.summary.Resolutions++
			}
		}

		if s.needsNaturalSize(el) {
			s.measureNaturalSize(ctx, sess, el)
		}
	}
}

// needsSourceRules reports whether the attribute/markup sizing path this
// resolver targets applies. Shadow-DOM elements are excluded because the
// node-path addressing scheme does not traverse shadow boundaries
// reliably; CSS-driven elements are excluded because their sizing is
// governed by a mechanism already classified upstream.
func (s *EnrichmentScheduler) needsSourceRules(el *ImageElementRecord) bool {
	return !el.InShadowDOM && !el.IsCSS
}

// needsNaturalSize reports whether an explicit in-page measurement is
// required. Only responsive-source constructs qualify: for a plain
// single-source image the network index join already identifies the
// delivered resource, but with srcset or picture the chosen candidate
// cannot be inferred from markup.
func (s *EnrichmentScheduler) needsNaturalSize(el *ImageElementRecord) bool {
	return el.IsPicture || el.Srcset != ""
}

// measureNaturalSize fills in el's natural dimensions, consulting the
// run cache before going to the remote channel. A failed measurement
// leaves the element untouched and never propagates.
func (s *EnrichmentScheduler) measureNaturalSize(ctx context.Context, sess Session, el *ImageElementRecord) {
	if size, ok := s.cache.Get(el.Src); ok {
		s.summary.CacheHits++
		applyNaturalSize(el, size)
		return
	}

	urlArg, err := json.Marshal(el.Src)
	if err != nil {
		s.log.Debug("unencodable image url", zap.String("url", el.Src), zap.Error(err))
		return
	}

	var payload struct {
		NaturalWidth  int64 `json:"naturalWidth"`
		NaturalHeight int64 `json:"naturalHeight"`
	}
	expr := fmt.Sprintf(naturalSizeExpression, urlArg)
	if err := sess.EvaluateInPage(ctx, expr, &payload); err != nil {
		s.summary.MeasurementErrors++
		s.log.Debug("natural size measurement failed", zap.String("url", el.Src), zap.Error(err))
		return
	}

	size := Size{Width: payload.NaturalWidth, Height: payload.NaturalHeight}
	s.summary.Measurements++
	s.cache.Set(el.Src, size)
	applyNaturalSize(el, size)
}

// Summary returns the run accounting collected so far.
func (s *EnrichmentScheduler) Summary() Summary {
	return s.summary
}

func applyNaturalSize(el *ImageElementRecord, size Size) {
	w, h := size.Width, size.Height
	el.NaturalWidth = &w
	el.NaturalHeight = &h
}
