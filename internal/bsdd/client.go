package bsdd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bsddscan/bsddscan/internal/model"
)

// ErrClassNotFound is returned when the dictionary service reports that a
// class URI does not exist. The crawler treats it like any other per-class
// failure; callers inspecting failures can single it out with errors.Is.
var ErrClassNotFound = errors.New("class not found")

// DefaultUserAgent identifies bsddscan in requests to the dictionary
// service so operators can recognize crawler traffic.
const DefaultUserAgent = "bsddscan/1.0 (+https://github.com/bsddscan/bsddscan)"

// propertiesPageLimit is the page size requested from the properties and
// relations endpoints. Matches the service maximum, so one request covers
// every class in the IFC dictionary.
const propertiesPageLimit = 1000

// Client fetches class records from the bSDD REST API.
// One Fetch issues three requests: class metadata (with child references),
// class properties, and class relations.
//
// Client is a pure data producer: it holds no crawl state and is safe for
// concurrent use by the worker pool.
type Client struct {
	httpClient *http.Client
	apiBase    string
	userAgent  string
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for API requests.
// Pass a client with a short timeout in tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIBase overrides the API base URL. Used to point at a mirror or a
// test server.
func WithAPIBase(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.apiBase = base
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithClientLogger sets the structured logger for request-level events.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client against the public bSDD API.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiBase:    DefaultAPIBase,
		userAgent:  DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// classResponse mirrors the Class/v1 payload (the fields we consume).
type classResponse struct {
	Name                 string `json:"name"`
	Code                 string `json:"code"`
	URI                  string `json:"uri"`
	ChildClassReferences []struct {
		URI  string `json:"uri"`
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"childClassReferences"`
}

// propertiesResponse mirrors the Class/Properties/v1 payload.
type propertiesResponse struct {
	ClassProperties []struct {
		Name        string `json:"name"`
		DataType    string `json:"dataType"`
		Definition  string `json:"definition"`
		PropertySet string `json:"propertySet"`
	} `json:"classProperties"`
}

// relationsResponse mirrors the Class/Relations/v1 payload.
type relationsResponse struct {
	ClassRelations []struct {
		RelationType  string `json:"relationType"`
		ClassURI      string `json:"classUri"`
		ClassName     string `json:"className"`
		DictionaryURI string `json:"dictionaryUri"`
	} `json:"classRelations"`
}

// Fetch retrieves the full record for one class URI.
// The returned children are canonical URIs ready for dispatch.
func (c *Client) Fetch(ctx context.Context, uri string) (*model.ClassRecord, []string, error) {
	canonical, err := Normalize(uri)
	if err != nil {
		return nil, nil, err
	}

	var class classResponse
	if err := c.getJSON(ctx, "/Class/v1", url.Values{
		"uri":                         {canonical},
		"includeChildClassReferences": {"true"},
	}, &class); err != nil {
		return nil, nil, fmt.Errorf("class metadata: %w", err)
	}

	var props propertiesResponse
	if err := c.getJSON(ctx, "/Class/Properties/v1", url.Values{
		"classuri": {canonical},
		"offset":   {"0"},
		"limit":    {fmt.Sprint(propertiesPageLimit)},
	}, &props); err != nil {
		return nil, nil, fmt.Errorf("class properties: %w", err)
	}

	var rels relationsResponse
	if err := c.getJSON(ctx, "/Class/Relations/v1", url.Values{
		"classuri":            {canonical},
		"offset":              {"0"},
		"limit":               {fmt.Sprint(propertiesPageLimit)},
		"getReverseRelations": {"true"},
	}, &rels); err != nil {
		return nil, nil, fmt.Errorf("class relations: %w", err)
	}

	record := &model.ClassRecord{
		ClassName:         class.Name,
		Code:              class.Code,
		URL:               canonical,
		ChildClasses:      make([]string, 0, len(class.ChildClassReferences)),
		Relations:         make([]model.Relation, 0, len(rels.ClassRelations)),
		IncomingRelations: make([]model.IncomingRelation, 0),
		Properties:        groupProperties(props),
	}
	if record.Code == "" {
		record.Code = ClassCode(canonical)
	}
	if record.ClassName == "" {
		record.ClassName = record.Code
	}

	for _, rel := range rels.ClassRelations {
		record.Relations = append(record.Relations, model.Relation{
			RelationType:  rel.RelationType,
			ClassURI:      rel.ClassURI,
			ClassName:     rel.ClassName,
			DictionaryURI: rel.DictionaryURI,
		})
	}

	for _, child := range class.ChildClassReferences {
		ref := child.URI
		if ref == "" && child.Code != "" {
			ref = IFCClassBase + child.Code
		}
		childURI, err := Normalize(ref)
		if err != nil {
			c.logger.Warn("skipping malformed child reference",
				"parent", canonical,
				"child", ref,
				"error", err,
			)
			continue
		}
		record.ChildClasses = append(record.ChildClasses, childURI)
	}

	c.logger.Debug("fetched class",
		"uri", canonical,
		"children", len(record.ChildClasses),
		"properties", record.PropertyCount(),
		"relations", len(record.Relations),
	)

	return record, record.ChildURIs(), nil
}

// groupProperties buckets properties by property set, falling back to the
// catch-all category. A class with no properties at all gets the historical
// placeholder row so downstream consumers see an explicit marker instead of
// an empty object.
func groupProperties(props propertiesResponse) map[string][]model.Property {
	grouped := make(map[string][]model.Property)
	for _, p := range props.ClassProperties {
		category := p.PropertySet
		if category == "" {
			category = model.DefaultPropertyCategory
		}
		grouped[category] = append(grouped[category], model.Property{
			Name:       p.Name,
			DataType:   p.DataType,
			Definition: p.Definition,
		})
	}

	if len(grouped) == 0 {
		grouped[model.DefaultPropertyCategory] = []model.Property{{
			Name:     model.DefaultPropertyCategory,
			DataType: "not in bSDD",
		}}
	}
	return grouped
}

// getJSON performs one API GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.apiBase + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrClassNotFound)
	case resp.StatusCode != http.StatusOK:
		// Drain a little of the body for context without trusting its size.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256)) //nolint:errcheck // Diagnostic only.
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
