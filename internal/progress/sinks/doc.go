// Package sinks implements the progress consumers: Prometheus search
// metrics, the search history repository and structured logging.
package sinks
