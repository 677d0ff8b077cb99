// Package progress carries search lifecycle events (search start, each
// scanned site, completion) from the pipeline to pluggable sinks. A Hub
// batches events on a background goroutine so workers never block on the
// history store or the metrics registry.
package progress
