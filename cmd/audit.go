// -- cmd/audit.go --
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sightlinehq/sightline-cli/internal/audit"
	"github.com/sightlinehq/sightline-cli/internal/browser"
	"github.com/sightlinehq/sightline-cli/internal/config"
	"github.com/sightlinehq/sightline-cli/internal/observability"
	"github.com/sightlinehq/sightline-cli/internal/reporting"
)

// newAuditCmd creates the `audit` command. The config getter defers
// resolution until after the root PersistentPreRunE has loaded it.
func newAuditCmd(getConfig func() *config.Config) *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit [targets...]",
		Short: "Audits the images of the specified pages",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so CLI values override config file and env with
			// the right precedence.
			if err := viper.BindPFlag("audit.enrichment_budget", cmd.Flags().Lookup("budget")); err != nil {
				return err
			}
			if err := viper.BindPFlag("audit.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := viper.BindPFlag("audit.output", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("audit.format", cmd.Flags().Lookup("format")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := getConfig()
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}

			targets := normalizeTargets(args)
			logger.Info("Starting image audit",
				zap.Strings("targets", targets),
				zap.Duration("enrichment_budget", cfg.Audit.EnrichmentBudget),
				zap.Int("concurrency", cfg.Audit.Concurrency),
			)

			manager, err := browser.NewManager(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize browser: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				manager.Shutdown(shutdownCtx)
			}()

			factory := func(ctx context.Context) (audit.PageSession, error) {
				return manager.NewSession(ctx)
			}

			pipeline := audit.NewPipeline(cfg, factory, logger)
			reports, err := pipeline.Run(ctx, targets)
			if err != nil {
				return err
			}

			if err := reporting.Write(reports, cfg.Audit.Format, cfg.Audit.Output); err != nil {
				return err
			}

			logger.Info("Audit complete", zap.Int("reports", len(reports)))
			return nil
		},
	}

	auditCmd.Flags().DurationP("budget", "b", 5000*time.Millisecond, "cumulative time budget for style resolutions per page")
	auditCmd.Flags().IntP("concurrency", "n", 2, "number of pages audited in parallel")
	auditCmd.Flags().StringP("output", "o", "-", "report path ('-' for stdout)")
	auditCmd.Flags().StringP("format", "f", "json", "report format")
	auditCmd.Flags().Bool("headless", true, "run the browser headless")

	return auditCmd
}

// normalizeTargets ensures every target carries a scheme.
func normalizeTargets(args []string) []string {
	targets := make([]string, len(args))
	for i, arg := range args {
		if !strings.HasPrefix(arg, "http://") && !strings.HasPrefix(arg, "https://") {
			arg = "https://" + arg
		}
		targets[i] = arg
	}
	return targets
}
