package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrBadJSON marks a request body that failed to parse as JSON, or parsed
// to null.
var ErrBadJSON = errors.New("render: request body is not valid JSON")

// ErrMissingURL marks a request whose url field is absent, empty, or not a
// parseable URL.
var ErrMissingURL = errors.New("render: missing or unparseable url")

// Request is the RenderRequest wire payload: a target URL plus the global
// and per-object setting maps, each keyed by the catalog in package
// settings. Raw JSON values are kept as-is until coercion so that a bad
// value can be reported with its original textual form.
type Request struct {
	URL    string                     `json:"url"`
	Global map[string]json.RawMessage `json:"global"`
	Object map[string]json.RawMessage `json:"object"`
}

// Parse decodes body as JSON into a Request and validates that url is
// present and parses as a URL. Any other fields in the catalog maps are
// left for the caller to coerce against the settings tables.
func Parse(body []byte) (Request, error) {
	var decoded *Request
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Request{}, fmt.Errorf("%w: failed to parse request body: %v", ErrBadJSON, err)
	}
	if decoded == nil {
		return Request{}, fmt.Errorf("%w: request body is null", ErrBadJSON)
	}
	req := *decoded
	if req.URL == "" {
		return Request{}, ErrMissingURL
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Request{}, fmt.Errorf("%w: %q", ErrMissingURL, req.URL)
	}
	return req, nil
}
