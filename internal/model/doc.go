// Package model defines the data structures shared across bsddscan.
//
// The central type is ClassRecord, one per taxonomy class, collected into a
// CrawlReport at the end of a run. Records are created exactly once by the
// fetch layer and treated as immutable once the crawler has aggregated them.
package model
