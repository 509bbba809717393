// -- internal/audit/pipeline.go --
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sightlinehq/sightline-cli/internal/config"
	"github.com/sightlinehq/sightline-cli/internal/reporting"
	"github.com/sightlinehq/sightline-cli/pkg/enrich"
)

// PageSession is everything the pipeline needs from one browser tab: the
// remote channel the enrichment core drives, plus navigation, discovery,
// and the harvested network log. The concrete implementation lives in
// internal/browser; tests substitute doubles.
type PageSession interface {
	enrich.Session
	Navigate(ctx context.Context, url string) error
	DiscoverImageElements(ctx context.Context) ([]*enrich.ImageElementRecord, error)
	NetworkRecords() []enrich.NetworkRecord
	Close(ctx context.Context) error
}

// SessionFactory opens a fresh tab for one audit run.
type SessionFactory func(ctx context.Context) (PageSession, error)

// Pipeline runs image audits end to end: navigate, harvest, discover,
// enrich, report. Each target gets its own session, scheduler, cache, and
// budget, so concurrent runs share nothing.
type Pipeline struct {
	cfg        *config.Config
	logger     *zap.Logger
	newSession SessionFactory
}

// NewPipeline creates a pipeline using the given session factory.
func NewPipeline(cfg *config.Config, factory SessionFactory, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		logger:     logger.Named("audit-pipeline"),
		newSession: factory,
	}
}

// Run audits the targets, bounded by the configured concurrency, and
// returns one report per successfully loaded target. A target whose page
// cannot be opened or navigated fails the run; partial enrichment of a
// loaded page does not.
func (p *Pipeline) Run(ctx context.Context, targets []string) ([]*reporting.AuditReport, error) {
	reports := make([]*reporting.AuditReport, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Audit.Concurrency, 1))

	for i, target := range targets {
		g.Go(func() error {
			report, err := p.runTarget(gctx, target)
			if err != nil {
				return fmt.Errorf("audit of %s failed: %w", target, err)
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// runTarget performs one complete audit run against a single page.
func (p *Pipeline) runTarget(ctx context.Context, target string) (*reporting.AuditReport, error) {
	runID := uuid.New().String()
	log := p.logger.With(zap.String("run_id", runID[:8]), zap.String("target", target))

	sess, err := p.newSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close(ctx)

	if err := sess.Navigate(ctx, target); err != nil {
		return nil, err
	}

	elements, err := sess.DiscoverImageElements(ctx)
	if err != nil {
		// A page with no readable DOM still produces an empty report; the
		// audit resolves rather than rejects.
		log.Warn("Element discovery failed; reporting empty element set.", zap.Error(err))
		elements = nil
	}

	networkIndex := enrich.BuildNetworkIndex(sess.NetworkRecords())
	log.Debug("Collected page state",
		zap.Int("elements", len(elements)),
		zap.Int("indexed_transfers", len(networkIndex)),
	)

	scheduler := enrich.NewEnrichmentScheduler(p.cfg.Audit.EnrichmentBudget, enrich.NewNaturalSizeCache(), log)
	scheduler.Enrich(ctx, sess, elements, networkIndex)

	summary := scheduler.Summary()
	log.Info("Enrichment complete",
		zap.Int("resolutions", summary.Resolutions),
		zap.Int("skipped_resolutions", summary.SkippedResolutions),
		zap.Int("measurements", summary.Measurements),
		zap.Duration("budget_spent", summary.BudgetSpent),
	)

	return reporting.Generate(runID, target, elements, summary), nil
}
