// Package bsdd talks to the buildingSMART Data Dictionary.
//
// It provides the two fetcher implementations consumed by the crawler:
// Client, which uses the REST API (class metadata, properties, relations in
// three requests), and HTMLFetcher, which scrapes identifier pages when the
// API is unavailable. Both normalize every class reference to a canonical
// absolute URI before it is handed to the crawler, and neither keeps any
// crawl state.
package bsdd
