package bsdd

import (
	"fmt"
	"net/url"
	"strings"
)

// Hosts and base URIs of the public buildingSMART Data Dictionary.
const (
	// IdentifierBase is the host serving class identifier pages.
	IdentifierBase = "https://identifier.buildingsmart.org"

	// IFCClassBase is the URI prefix for IFC 4.3 classes. A bare class
	// code like "IfcRoot" expands to IFCClassBase + code.
	IFCClassBase = IdentifierBase + "/uri/buildingsmart/ifc/4.3/class/"

	// DefaultAPIBase is the REST API endpoint of the dictionary service.
	DefaultAPIBase = "https://api.bsdd.buildingsmart.org/api"
)

// Normalize converts a class reference into its canonical absolute URI.
// Relative references (as emitted by identifier pages) resolve against the
// identifier host; fragments are dropped; scheme and host are lowercased;
// a trailing slash is trimmed.
//
// Every child reference must pass through here before it reaches the
// crawler: the crawler deduplicates by exact string match, so two spellings
// of the same class would otherwise be fetched twice.
func Normalize(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty class reference")
	}

	if strings.HasPrefix(ref, "/") {
		ref = IdentifierBase + ref
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid class reference %q: %w", ref, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported class reference %q: expected an absolute http(s) URI or an absolute path", ref)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String(), nil
}

// StartURI resolves the user-supplied start argument: a full class URI, an
// absolute identifier path, or a bare class code such as "IfcRoot" (which
// expands to the IFC 4.3 class URI).
func StartURI(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("empty start class")
	}
	if !strings.Contains(arg, "/") {
		return Normalize(IFCClassBase + arg)
	}
	return Normalize(arg)
}

// ClassCode extracts the trailing class code from a canonical class URI.
// Used as a display fallback when the source record carries no code.
func ClassCode(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 && i+1 < len(uri) {
		return uri[i+1:]
	}
	return uri
}
