// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sightlinehq/sightline-cli/internal/config"
	"github.com/sightlinehq/sightline-cli/internal/observability"
)

// NewRootCommand builds the command tree. A fresh instance per invocation
// keeps flag state from leaking between runs.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:     "sightline-cli",
		Short:   "Sightline audits a page's images for performance problems.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(viper.GetViper(), cfgFile)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{
					Level: "info", Format: "console", ServiceName: "sightline-cli",
				})
				return err
			}
			cfg = loaded

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting sightline-cli", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newAuditCmd(func() *config.Config { return cfg }))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the CLI with a signal-aware context.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}
