package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-content-crawler/internal/app"
	"github.com/JakeFAU/bank-content-crawler/internal/config"
	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
)

// crawlApp is the part of *app.App the commands use. Tests swap in a fake.
type crawlApp interface {
	Run(ctx context.Context) (crawler.Dataset, error)
	Close()
}

type rootOptions struct {
	configPath string
	newApp     func(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawlApp, error)
}

func defaultOptions() *rootOptions {
	return &rootOptions{
		newApp: func(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawlApp, error) {
			return app.New(ctx, cfg, logger)
		},
	}
}

// newRootCmd creates the root command and attaches the subcommands.
func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bankcrawl",
		Short: "Collects the public text content of a bank website into a dataset.",
		Long: `bankcrawl renders every in-scope page of the configured bank website in a
headless browser, downloads linked PDF documents, normalizes and chunks the
text, tags each chunk with its language and writes the result as a JSON
dataset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.AddCommand(newCrawlCmd(opts))
	return cmd
}

// Execute runs the CLI with ctx, which is cancelled on interrupt.
func Execute(ctx context.Context, args []string) error {
	cmd := newRootCmd(defaultOptions())
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}
