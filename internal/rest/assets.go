package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/pipeline"
)

// assetsResponse wraps a list of assets (spec.md §4.6 "From asset storage").
type assetsResponse struct {
	Assets []assetView `json:"assets"`
}

// listAssets serves GET /assets?type=&device=&count=&removed= (spec.md
// §4.6 REST URI grammar).
func (h *handlers) listAssets(w http.ResponseWriter, r *http.Request) {
	errs := &ParamErrors{}
	typ := QueryString(r, "type", "")
	device := QueryString(r, "device", "")
	count := QueryInt(r, "count", h.opts.DefaultSampleCount, errs)
	removed := QueryBool(r, "removed", false, errs)
	if errs.HasErrors() {
		WriteParamErrors(w, errs)
		return
	}

	deviceUUID := device
	if device != "" {
		if d, ok := h.agent.Registry.ByName(device); ok {
			deviceUUID = d.UUID
		}
	}

	assets := h.agent.Assets.List(deviceUUID, typ, removed, count)
	WriteJSON(w, http.StatusOK, assetsResponse{Assets: renderAssets(assets)})
}

// getAsset serves GET /asset/{id}.
func (h *handlers) getAsset(w http.ResponseWriter, r *http.Request) {
	id := PathString(r, "id")
	a, ok := h.agent.Assets.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "no asset with id "+id)
		return
	}
	WriteJSON(w, http.StatusOK, renderAsset(a))
}

// assetMutationBody is the JSON body accepted by PUT/POST /asset/{id}.
type assetMutationBody struct {
	DeviceUUID string `json:"deviceUuid"`
	Type       string `json:"type"`
}

// putAsset serves PUT/POST /asset/{id} (spec.md §4.6 "Mutations... Allowed
// only if globally enabled and from an allow-listed remote" — the
// MutationAllowlist middleware has already gated this request by the time
// it reaches the handler).
func (h *handlers) putAsset(w http.ResponseWriter, r *http.Request) {
	id := PathString(r, "id")

	var body assetMutationBody
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if body.DeviceUUID == "" {
		body.DeviceUUID = h.agent.DefaultDeviceUUID()
	}

	assetID := model.RewriteAssetID(id, body.DeviceUUID)
	h.agent.DeliverAsset(&model.Asset{
		AssetID:    assetID,
		DeviceUUID: body.DeviceUUID,
		Type:       body.Type,
		Timestamp:  time.Now(),
	})

	a, _ := h.agent.Assets.Get(assetID)
	WriteJSON(w, http.StatusOK, renderAsset(a))
}

// deleteAsset serves DELETE /asset/{id}: tombstones the asset (spec.md §3
// "Asset" — assets are removed, not deleted outright).
func (h *handlers) deleteAsset(w http.ResponseWriter, r *http.Request) {
	id := PathString(r, "id")
	a, ok := h.agent.Assets.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "no asset with id "+id)
		return
	}
	h.agent.DeliverAssetCommand(pipeline.AssetCommandRemove, id, a.DeviceUUID, a.Type)
	w.WriteHeader(http.StatusNoContent)
}

// deleteAllAssets serves DELETE /assets?device=&type=.
func (h *handlers) deleteAllAssets(w http.ResponseWriter, r *http.Request) {
	device := QueryString(r, "device", "")
	typ := QueryString(r, "type", "")

	deviceUUID := device
	if device != "" {
		if d, ok := h.agent.Registry.ByName(device); ok {
			deviceUUID = d.UUID
		}
	}
	h.agent.DeliverAssetCommand(pipeline.AssetCommandRemoveAll, "", deviceUUID, typ)
	w.WriteHeader(http.StatusNoContent)
}

// DecodeJSON decodes a request body into v, grounded on the teacher's
// DecodeJSON (internal/api/responses.go).
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return http.ErrBodyNotAllowed
	}
	return json.NewDecoder(r.Body).Decode(v)
}
