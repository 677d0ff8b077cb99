// Package extract turns fetched pages into products. Embedded structured data
// (JSON-LD, OpenGraph) is read first; otherwise the cleaned page is sent to a
// language model with an extraction prompt and the JSON reply is parsed.
package extract
