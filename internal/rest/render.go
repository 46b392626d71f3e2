package rest

import (
	"encoding/json"
	"net/http"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

// ErrorBody is the standard error response shape, grounded on the teacher's
// ErrorResponse (internal/api/responses.go).
type ErrorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// WriteParamErrors renders accumulated coercion failures as a single
// InvalidParameterValue response (spec.md §4.6).
func WriteParamErrors(w http.ResponseWriter, errs *ParamErrors) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: "INVALID_PARAMETER_VALUE", Details: errs.Messages()})
}

// renderValue converts a model.Value into its JSON-native representation.
func renderValue(v model.Value) any {
	switch v.Kind {
	case model.KindEmpty, model.KindNull:
		return nil
	case model.KindString:
		return v.Str
	case model.KindInt64:
		return v.Int
	case model.KindDouble:
		return v.Float
	case model.KindBool:
		return v.Bool
	case model.KindVector:
		return v.Vector
	case model.KindTimestamp:
		return v.Time
	case model.KindDataSet:
		out := make(map[string]any, len(v.DataSet))
		for _, e := range v.DataSet {
			if !e.Removed {
				out[e.Key] = e.Value
			}
		}
		return out
	default:
		return nil
	}
}

// observationView is the wire shape of one observation, grounded on
// spec.md §3's Observation fields.
type observationView struct {
	DataItemID string `json:"dataItemId"`
	Kind       string `json:"kind"`
	Sequence   uint64 `json:"sequence"`
	Timestamp  string `json:"timestamp"`
	Value      any    `json:"value,omitempty"`

	// Condition-only.
	Level      string `json:"level,omitempty"`
	NativeCode string `json:"nativeCode,omitempty"`
	Text       string `json:"text,omitempty"`
}

func renderObservation(o *observation.Observation) observationView {
	view := observationView{
		DataItemID: o.DataItemID,
		Kind:       o.Kind.String(),
		Sequence:   o.Sequence,
		Timestamp:  o.Timestamp.UTC().Format(rfc3339Milli),
	}
	if o.Kind == observation.KindCondition && o.Condition != nil {
		view.Level = o.Condition.Level.String()
		view.NativeCode = o.Condition.NativeCode
		view.Text = o.Condition.Value.Str
	} else {
		view.Value = renderValue(o.Value)
	}
	return view
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

func renderObservations(obs []*observation.Observation) []observationView {
	out := make([]observationView, len(obs))
	for i, o := range obs {
		out[i] = renderObservation(o)
	}
	return out
}

// dataItemView/componentView/deviceView render the device model tree for
// /probe (spec.md §4.6 "Device model snapshot").
type dataItemView struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Type           string `json:"type,omitempty"`
	SubType        string `json:"subType,omitempty"`
	Representation string `json:"representation,omitempty"`
	Units          string `json:"units,omitempty"`
}

type componentView struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	Type       string          `json:"type"`
	DataItems  []dataItemView  `json:"dataItems,omitempty"`
	Components []componentView `json:"components,omitempty"`
}

type deviceView struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	componentView
}

func renderDataItem(d *model.DataItem) dataItemView {
	return dataItemView{
		ID:             d.ID,
		Category:       string(d.Category),
		Type:           d.Type,
		SubType:        d.SubType,
		Representation: string(d.Representation),
		Units:          d.Units,
	}
}

func renderComponent(c *model.Component) componentView {
	view := componentView{ID: c.ID, Name: c.Name, Type: c.Type}
	for _, di := range c.DataItems {
		view.DataItems = append(view.DataItems, renderDataItem(di))
	}
	for _, child := range c.Children {
		view.Components = append(view.Components, renderComponent(child))
	}
	return view
}

func renderDevice(d *model.Device) deviceView {
	return deviceView{UUID: d.UUID, Name: d.Name, componentView: renderComponent(d.Component)}
}

// assetView renders an asset record for /assets and /asset/{id}.
type assetView struct {
	AssetID    string `json:"assetId"`
	DeviceUUID string `json:"deviceUuid"`
	Type       string `json:"type"`
	Timestamp  string `json:"timestamp"`
	Removed    bool   `json:"removed"`
}

func renderAsset(a *model.Asset) assetView {
	return assetView{
		AssetID:    a.AssetID,
		DeviceUUID: a.DeviceUUID,
		Type:       a.Type,
		Timestamp:  a.Timestamp.UTC().Format(rfc3339Milli),
		Removed:    a.Removed,
	}
}

func renderAssets(assets []*model.Asset) []assetView {
	out := make([]assetView, len(assets))
	for i, a := range assets {
		out[i] = renderAsset(a)
	}
	return out
}
