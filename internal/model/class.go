package model

// DefaultPropertyCategory is the catch-all category used when the source
// provides no property grouping for a class.
const DefaultPropertyCategory = "Attributes"

// ClassRecord holds everything collected for a single taxonomy class.
// One record is created per class URI on its first successful fetch and is
// never mutated after it enters the result set.
//
// Design decision: The JSON field names mirror the bSDD export format used
// by downstream tooling (class_name, child_classes, ...) rather than Go
// naming conventions, so the output document can be consumed unchanged.
type ClassRecord struct {
	// ClassName is the human-readable name of the class (e.g., "IfcWall").
	ClassName string `json:"class_name"`

	// Code is the short class code from the dictionary (e.g., "IfcWall").
	// Falls back to the class name when the source omits it.
	Code string `json:"code"`

	// URL is the canonical class URI. It is the identifier used for
	// deduplication across the whole crawl, so it must already be in
	// normalized absolute form.
	URL string `json:"url"`

	// ChildClasses lists the canonical URIs of direct child classes in the
	// order the source reported them. Duplicates at the source are kept
	// here but are never dispatched twice.
	ChildClasses []string `json:"child_classes"`

	// Relations are outgoing relations to other classes. These are recorded
	// but never traversed; only ChildClasses drive the crawl.
	Relations []Relation `json:"relations"`

	// IncomingRelations are relations pointing at this class.
	// Empty in scrape mode where the source page hides them behind
	// client-side rendering.
	IncomingRelations []IncomingRelation `json:"incoming_relations"`

	// Properties groups class properties by category (property set).
	// Classes without any grouping end up with the single
	// DefaultPropertyCategory key.
	Properties map[string][]Property `json:"properties"`
}

// Relation is an outgoing relation edge from a class.
type Relation struct {
	// RelationType describes the kind of relation (e.g., "HasMaterial").
	RelationType string `json:"relation_type"`

	// ClassURI is the URI of the related class.
	ClassURI string `json:"class_uri"`

	// ClassName is the display name of the related class.
	ClassName string `json:"class_name"`

	// DictionaryURI identifies the dictionary the related class belongs to.
	DictionaryURI string `json:"dictionary_uri"`
}

// IncomingRelation is a relation edge pointing at a class from elsewhere
// in the dictionary.
type IncomingRelation struct {
	// RelatesWith is the display name of the class on the other end.
	RelatesWith string `json:"relates_with"`

	// Direction indicates how the relation points (e.g., "incoming").
	Direction string `json:"direction"`

	// URI is the URI of the related class.
	URI string `json:"uri"`

	// Type is the relation type.
	Type string `json:"type"`

	// Dictionary is the name of the dictionary the relation comes from.
	Dictionary string `json:"dictionary"`

	// VersionStatus is the release status of that dictionary version.
	VersionStatus string `json:"version_status"`
}

// Property is a single class property as shown in the dictionary.
type Property struct {
	// Name is the property name.
	Name string `json:"name"`

	// DataType is the property data type (e.g., "String", "Boolean").
	DataType string `json:"data_type"`

	// Definition is the property definition text, if any.
	Definition string `json:"definition"`
}

// ChildURIs returns the child class URIs with same-record duplicates
// removed, preserving first-seen order. The crawler uses this to build
// dispatch candidates; the raw ChildClasses slice keeps what the source
// actually reported.
func (c *ClassRecord) ChildURIs() []string {
	seen := make(map[string]struct{}, len(c.ChildClasses))
	uris := make([]string, 0, len(c.ChildClasses))
	for _, uri := range c.ChildClasses {
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		uris = append(uris, uri)
	}
	return uris
}

// PropertyCount returns the total number of properties across all categories.
func (c *ClassRecord) PropertyCount() int {
	var n int
	for _, props := range c.Properties {
		n += len(props)
	}
	return n
}
