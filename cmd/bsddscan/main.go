// Package main provides the entry point for the bsddscan CLI.
//
// bsddscan crawls a class taxonomy in the buildingSMART Data Dictionary
// and materializes it as a JSON document, a Markdown summary, or rows in a
// local SQLite database.
//
// Usage:
//
//	bsddscan crawl IfcRoot
//	bsddscan crawl https://identifier.buildingsmart.org/uri/buildingsmart/ifc/4.3/class/IfcWall
//
// See --help for all available options.
package main

// main is the entry point for bsddscan.
func main() {
	Execute()
}
