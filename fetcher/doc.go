// Package fetcher is the relay's artifact fetcher. Given the reference
// carried by an event it retrieves the artifact's binary payload from the
// canonical store, retrying transient failures with exponential backoff up
// to a configured bound. Missing and malformed references fail permanently
// without retry.
package fetcher
