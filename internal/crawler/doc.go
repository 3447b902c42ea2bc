// Package crawler implements the crawl pipeline for a single banking site:
// the URL frontier, the per-URL HTML/PDF dispatch, and the batch orchestrator
// that turns fetched documents into chunked dataset records.
package crawler
