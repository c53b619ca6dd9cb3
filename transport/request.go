package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Ninjaclasher/hidrateapp-server/core"
)

// apiRequest is one decoded API call: the effective verb after any in-body
// override, the parsed body document, and the parameter source list views
// and functions read from.
type apiRequest struct {
	method    string
	body      map[string]any
	principal *core.User
	token     string

	// query holds URL query parameters; overridden is set when an
	// in-body verb override replaced them with the body document.
	query      map[string]string
	overridden bool
}

// decodeRequest reads and parses the body, then applies the verb override:
// a body carrying "_method" executes as that verb, and the body document
// doubles as the parameter source the way query parameters normally would.
func (s *Server) decodeRequest(r *http.Request) (*apiRequest, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, core.MaxDocumentBytes+1))
	if err != nil {
		return nil, core.ErrInvalidJSON()
	}
	body, err := core.DecodeDocument(raw)
	if err != nil {
		return nil, err
	}

	req := &apiRequest{
		method: r.Method,
		body:   body,
		query:  singleValueQuery(r),
	}

	if value, ok := body["_method"]; ok {
		verb, isString := value.(string)
		if isString && !strings.EqualFold(verb, r.Method) {
			req.method = strings.ToUpper(verb)
			req.overridden = true
			delete(body, "_method")
		}
	}

	principal, token, err := s.resolvePrincipal(r)
	if err != nil {
		return nil, err
	}
	req.principal = principal
	req.token = token

	return req, nil
}

func singleValueQuery(r *http.Request) map[string]string {
	values := r.URL.Query()
	out := make(map[string]string, len(values))
	for key := range values {
		out[key] = values.Get(key)
	}
	return out
}

// param returns the named parameter from the active source: the body
// document after a verb override, the URL query otherwise.
func (req *apiRequest) param(key string) (string, bool) {
	if !req.overridden {
		value, ok := req.query[key]
		return value, ok
	}
	value, ok := req.body[key]
	if !ok {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

func (req *apiRequest) listParams() core.ListParams {
	params := core.ListParams{}
	if where, ok := req.param("where"); ok {
		params.Where = where
	}
	if order, ok := req.param("order"); ok {
		params.Order = order
	}
	if limit, ok := req.param("limit"); ok {
		params.Limit = limit
	}
	return params
}

func (req *apiRequest) objectRequest(objectID string) *core.ObjectRequest {
	return &core.ObjectRequest{
		Principal: req.principal,
		ObjectID:  objectID,
		Body:      req.body,
		Params:    req.listParams(),
	}
}
