// Command bankcrawl crawls a bank website into a chunked, language-tagged
// text dataset.
//
// Run locally:
//
//	bankcrawl crawl --config config.yaml
//
// Every config key can also be set through the environment with the
// CRAWLER_ prefix, e.g. CRAWLER_CRAWLER_MAX_PAGES=50. SIGINT and SIGTERM stop
// the crawl after the in-flight batch; the process then exits 0.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bankcrawl: %v\n", err)
		os.Exit(1)
	}
}
