package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/bank-content-crawler/internal/config"
	"github.com/JakeFAU/bank-content-crawler/internal/logging"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one full crawl.
func newCrawlCmd(opts *rootOptions) *cobra.Command {
	var (
		outputFile string
		maxPages   int
		port       int
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the configured site and write the dataset",
		Long: `Crawls the configured site from its base URL until every in-scope link has
been visited or the record cap is reached, then writes the dataset file. An
interrupt stops the crawl after the in-flight batch and exits cleanly without
writing output unless output.save_on_interrupt is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			flags := cmd.Flags()
			if flags.Changed("output") {
				cfg.Output.File = outputFile
			}
			if flags.Changed("max-pages") {
				cfg.Crawler.MaxPages = maxPages
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			restore := logging.Install(logger)
			defer restore()

			crawl, err := opts.newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("init application services: %w", err)
			}
			defer crawl.Close()

			dataset, err := crawl.Run(cmd.Context())
			if err != nil {
				logger.Error("Crawl failed", zap.Error(err))
				return err
			}
			logger.Info("Crawl command finished",
				zap.Int("total_items", dataset.Summary.TotalItems),
				zap.Int("html_pages", dataset.Summary.HTMLPages),
				zap.Int("pdf_documents", dataset.Summary.PDFDocuments),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "dataset file (overrides output.file)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "record cap (overrides crawler.max_pages)")
	cmd.Flags().IntVar(&port, "port", 0, "status server port, 0 disables (overrides server.port)")
	return cmd
}
