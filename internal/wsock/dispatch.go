package wsock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
)

// routeFor maps a WebSocket request command onto the same route the REST
// sink registers (internal/rest/server.go), so both sinks resolve to
// identical handlers (spec.md §4.6: "Successful requests dispatch to the
// same handler as the REST sink"). jsonBody reports whether the remaining
// parameters belong in a JSON request body (asset mutations) rather than
// the query string.
func routeFor(command string) (method, pathTemplate string, jsonBody, ok bool) {
	switch command {
	case "probe":
		return http.MethodGet, "/probe", false, true
	case "probeDevice":
		return http.MethodGet, "/{device}/probe", false, true
	case "current":
		return http.MethodGet, "/current", false, true
	case "currentDevice":
		return http.MethodGet, "/{device}/current", false, true
	case "sample":
		return http.MethodGet, "/sample", false, true
	case "sampleDevice":
		return http.MethodGet, "/{device}/sample", false, true
	case "listAssets":
		return http.MethodGet, "/assets", false, true
	case "getAsset":
		return http.MethodGet, "/asset/{id}", false, true
	case "putAsset":
		return http.MethodPut, "/asset/{id}", true, true
	case "deleteAsset":
		return http.MethodDelete, "/asset/{id}", false, true
	case "deleteAllAssets":
		return http.MethodDelete, "/assets", false, true
	default:
		return "", "", false, false
	}
}

// buildRequest turns a parsed WebSocket frame into the *http.Request the
// REST sink's router would receive over plain HTTP for the equivalent
// route, consuming path parameters ({device}, {id}) from params and
// routing the rest to the query string or, for mutations, a JSON body.
func buildRequest(remoteAddr, command string, params map[string]json.RawMessage) (*http.Request, error) {
	method, pathTemplate, wantsBody, ok := routeFor(command)
	if !ok {
		return nil, fmt.Errorf("unrecognized request %q", command)
	}

	path := pathTemplate
	if strings.Contains(path, "{device}") {
		raw, ok := params["device"]
		if !ok {
			return nil, fmt.Errorf("request %q requires a device parameter", command)
		}
		path = strings.Replace(path, "{device}", url.PathEscape(rawToString(raw)), 1)
		delete(params, "device")
	}
	if strings.Contains(path, "{id}") {
		raw, ok := params["id"]
		if !ok {
			return nil, fmt.Errorf("request %q requires an id parameter", command)
		}
		path = strings.Replace(path, "{id}", url.PathEscape(rawToString(raw)), 1)
		delete(params, "id")
	}

	var body []byte
	if wantsBody {
		obj := make(map[string]json.RawMessage, len(params))
		for k, v := range params {
			obj[k] = v
		}
		var err error
		body, err = json.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	} else if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, rawToString(v))
		}
		path += "?" + q.Encode()
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = remoteAddr
	if wantsBody {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
