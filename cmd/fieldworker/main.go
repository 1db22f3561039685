// Command fieldworker runs the hybrid field-detection core, either as a
// one-shot CLI invocation against a single document (spec §6's processor
// invocation) or as the long-running HTTP worker it's delivered to via the
// queue collaborator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docfields/hybriddetect/internal/config"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

var (
	flagForce          bool
	flagNoVision       bool
	flagVisionProvider string
	flagDebug          bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fieldworker",
		Short:         "Hybrid PDF form-field detection worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newProcessCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "fieldworker %s (%s)\n", version, gitCommit)
			return nil
		},
	}
}

// newLogger builds the process-wide zap logger, development-mode and more
// verbose under --debug, matching the config's Debug toggle.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// applyVisionFlags layers CLI overrides from --no-vision/--vision-provider
// onto the environment-sourced config, per spec §6: the provider and API
// key are environment toggles, but a single invocation may opt out or pin
// a provider.
func applyVisionFlags(cfg *config.Config, noVision bool, provider string) error {
	if noVision {
		cfg.VisionProvider = config.VisionProviderNone
		return nil
	}
	if provider == "" {
		return nil
	}
	switch config.VisionProvider(provider) {
	case config.VisionProviderOpenAI, config.VisionProviderGemini:
		cfg.VisionProvider = config.VisionProvider(provider)
		return nil
	default:
		return fmt.Errorf("unsupported vision provider: %s", provider)
	}
}
