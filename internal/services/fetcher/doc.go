// Package fetcher is the HTTP client for video metadata and stream
// descriptors.
package fetcher
