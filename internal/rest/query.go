package rest

import (
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"net/http"
)

// ParamErrors accumulates parameter coercion failures across an entire
// request instead of failing on the first one, matching spec.md §4.6
// "Parameter coercion emits InvalidParameterValue with a list of
// accumulated errors" (grounded on internal/api/responses.go's parameter
// helpers, extended to accumulate rather than return-on-first-error).
type ParamErrors struct {
	messages []string
}

func (p *ParamErrors) Add(name, reason string) {
	p.messages = append(p.messages, name+": "+reason)
}

func (p *ParamErrors) HasErrors() bool { return len(p.messages) > 0 }

func (p *ParamErrors) Messages() []string { return p.messages }

// PathString returns a required {string} path variable, grounded on
// chi.URLParam.
func PathString(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// QueryString returns a {string} query parameter, or def if absent.
func QueryString(r *http.Request, name, def string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return def
}

// QueryInt coerces an {integer} query parameter with default def,
// accumulating a violation on errs if present but unparsable.
func QueryInt(r *http.Request, name string, def int, errs *ParamErrors) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		errs.Add(name, "must be an integer")
		return def
	}
	return n
}

// QueryUint coerces an {unsigned_integer} query parameter, rejecting
// negative values.
func QueryUint(r *http.Request, name string, def uint64, errs *ParamErrors) uint64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		errs.Add(name, "must be an unsigned integer")
		return def
	}
	return n
}

// QueryUintPtr coerces an optional {unsigned_integer} query parameter,
// returning nil when absent so callers can distinguish "not given" from
// "given as zero" (used by sample's from/to and current's at).
func QueryUintPtr(r *http.Request, name string, errs *ParamErrors) *uint64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		errs.Add(name, "must be an unsigned integer")
		return nil
	}
	return &n
}

// QueryBool coerces a {bool} query parameter with default def.
func QueryBool(r *http.Request, name string, def bool, errs *ParamErrors) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		errs.Add(name, "must be a boolean")
		return def
	}
	return b
}

// QueryPathFilter parses the "path" query parameter into a data-item id
// filter set. This agent's path grammar is a pragmatic subset of the
// original's XPath filter (no XPath engine is wired anywhere in the
// example pack — see DESIGN.md): a comma-separated list of bare data-item
// ids, MTConnect Types (e.g. "Temperature"), or categories ("SAMPLE",
// "EVENT", "CONDITION"), resolved against the current device registry.
// An empty path means unfiltered.
func QueryPathFilter(r *http.Request, resolve func(expr string) []string) map[string]bool {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, expr := range strings.Split(raw, ",") {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		for _, id := range resolve(expr) {
			filter[id] = true
		}
	}
	return filter
}
