// Package capture implements the URL-to-screenshot batch pipeline: URL
// normalization, filename sanitization, and the per-batch loop that drives one
// browser session across an ordered list of URLs.
package capture
