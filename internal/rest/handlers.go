package rest

import (
	"net/http"
	"strings"

	"github.com/snarg/mtc-agent/internal/agent"
	"github.com/snarg/mtc-agent/internal/model"
)

type handlers struct {
	agent *agent.Agent
	opts  Options
}

// resolveDevice looks up the {device} path variable by uuid or name,
// writing a 404 and returning ok=false if it doesn't resolve.
func (h *handlers) resolveDevice(w http.ResponseWriter, r *http.Request) (*model.Device, bool) {
	name := PathString(r, "device")
	if d, ok := h.agent.Registry.ByUUID(name); ok {
		return d, true
	}
	if d, ok := h.agent.Registry.ByName(name); ok {
		return d, true
	}
	WriteError(w, http.StatusNotFound, "no device named or identified by "+name)
	return nil, false
}

// resolvePathExpr resolves one comma-separated "path" term (see
// QueryPathFilter) against the live device registry: a bare data-item id,
// an MTConnect Type, or a Category, scoped to device if non-empty.
func (h *handlers) resolvePathExpr(device *model.Device) func(expr string) []string {
	return func(expr string) []string {
		var ids []string
		match := func(di *model.DataItem) {
			if di.ID == expr || strings.EqualFold(di.Type, expr) || strings.EqualFold(string(di.Category), expr) {
				ids = append(ids, di.ID)
			}
		}
		if device != nil {
			device.Walk(func(c *model.Component) {
				for _, di := range c.DataItems {
					match(di)
				}
			})
			return ids
		}
		for _, d := range h.agent.Registry.Devices() {
			d.Walk(func(c *model.Component) {
				for _, di := range c.DataItems {
					match(di)
				}
			})
		}
		return ids
	}
}
