package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

// jsonObservation is the wire shape spec.md §6 names for an MQTT JSON
// observation payload: `{dataItemId, timestamp, value}`.
type jsonObservation struct {
	DataItemID string      `json:"dataItemId"`
	Timestamp  *time.Time  `json:"timestamp,omitempty"`
	Value      interface{} `json:"value"`
}

// jsonAsset is the wire shape for an MQTT JSON asset document.
type jsonAsset struct {
	AssetID    string          `json:"assetId"`
	DeviceUUID string          `json:"deviceUuid,omitempty"`
	Type       string          `json:"type"`
	Removed    bool            `json:"removed,omitempty"`
	Body       json.RawMessage `json:"body"`
}

// NewJsonMapper parses a JsonMessage payload into observation(s) or
// asset(s) (spec.md §4.1 JsonMapper row). An array payload is treated as a
// batch of observations; an object with an "assetId" field is treated as
// an asset document; otherwise it is parsed as a single observation.
func NewJsonMapper(agent Agent) *Node {
	return &Node{
		Name:  "JsonMapper",
		Guard: OnKind(KindJSONMessage),
		Apply: func(e *Entity) *Entity {
			var probe json.RawMessage
			if err := json.Unmarshal(e.Payload, &probe); err != nil {
				e.AddError(fmt.Errorf("json: %w", err))
				return nil
			}

			if isJSONArray(probe) {
				var raw []jsonObservation
				if err := json.Unmarshal(probe, &raw); err != nil {
					e.AddError(fmt.Errorf("json: %w", err))
					return nil
				}
				return buildJSONObservations(agent, e, raw)
			}

			var obj map[string]json.RawMessage
			if err := json.Unmarshal(probe, &obj); err != nil {
				e.AddError(fmt.Errorf("json: %w", err))
				return nil
			}
			if _, ok := obj["assetId"]; ok {
				var a jsonAsset
				if err := json.Unmarshal(probe, &a); err != nil {
					e.AddError(fmt.Errorf("json: %w", err))
					return nil
				}
				return buildJSONAsset(e, a)
			}

			var single jsonObservation
			if err := json.Unmarshal(probe, &single); err != nil {
				e.AddError(fmt.Errorf("json: %w", err))
				return nil
			}
			return buildJSONObservations(agent, e, []jsonObservation{single})
		},
	}
}

func isJSONArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

func buildJSONObservations(agent Agent, e *Entity, raw []jsonObservation) *Entity {
	var obs []*observation.Observation
	for _, r := range raw {
		di, ok := agent.DataItem(r.DataItemID)
		if !ok {
			e.AddError(&unknownDataItemError{id: r.DataItemID})
			continue
		}
		ts := e.Timestamp
		if r.Timestamp != nil {
			ts = *r.Timestamp
		}
		obs = append(obs, jsonValueToObservation(di, ts, r.Value))
	}
	if len(obs) == 0 {
		return nil
	}
	return &Entity{Kind: KindObservationRaw, Source: e.Source, Timestamp: e.Timestamp, Observations: obs, Errors: e.Errors}
}

func jsonValueToObservation(di *model.DataItem, ts time.Time, raw interface{}) *observation.Observation {
	kind := observation.KindEvent
	if di.Category == model.CategorySample {
		kind = observation.KindSample
	}

	switch v := raw.(type) {
	case float64:
		if kind == observation.KindSample {
			return observation.New(di.ID, kind, ts, model.DoubleValue(v))
		}
		return observation.New(di.ID, kind, ts, model.StringValue(fmt.Sprintf("%v", v)))
	case string:
		if kind == observation.KindSample {
			return observation.New(di.ID, kind, ts, model.StringValue(model.Unavailable))
		}
		return observation.New(di.ID, kind, ts, model.StringValue(v))
	case bool:
		return observation.New(di.ID, kind, ts, model.BoolValue(v))
	default:
		return observation.New(di.ID, kind, ts, model.StringValue(model.Unavailable))
	}
}

// NewAssetMapper finishes the Asset entities JsonMapper built from a JSON
// asset document (spec.md §4.1 JsonMapper row's "...or asset(s)", broken out
// as its own transform — SPEC_FULL.md §16): it fills in the default device
// uuid where none was given and rewrites each asset id. It does no parsing
// of its own.
func NewAssetMapper(defaultDeviceUUID func() string) *Node {
	return &Node{
		Name:  "AssetMapper",
		Guard: OnKind(KindAssetRaw),
		Apply: func(e *Entity) *Entity {
			for _, a := range e.Assets {
				if a.DeviceUUID == "" {
					a.DeviceUUID = defaultDeviceUUID()
				}
				a.AssetID = model.RewriteAssetID(a.AssetID, a.DeviceUUID)
			}
			return e
		},
	}
}

func buildJSONAsset(e *Entity, a jsonAsset) *Entity {
	asset := &model.Asset{
		AssetID:    a.AssetID,
		DeviceUUID: a.DeviceUUID,
		Type:       a.Type,
		Timestamp:  e.Timestamp,
		Removed:    a.Removed,
		Body:       jsonToEntity(a.Type, a.Body),
	}
	return &Entity{Kind: KindAssetRaw, Source: e.Source, Timestamp: e.Timestamp, Assets: []*model.Asset{asset}}
}

// jsonToEntity converts a JSON object into a model.Entity, recursing into
// nested objects/arrays, matching the teacher's preference for decoding
// into typed structures rather than passing raw JSON deeper into the
// pipeline.
func jsonToEntity(name string, raw json.RawMessage) *model.Entity {
	e := model.NewEntity(name)
	if len(raw) == 0 {
		return e
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return e
	}
	for k, v := range m {
		e.Set(k, jsonAnyToValue(k, v))
	}
	return e
}

func jsonAnyToValue(name string, v interface{}) model.Value {
	switch t := v.(type) {
	case string:
		return model.StringValue(t)
	case float64:
		return model.DoubleValue(t)
	case bool:
		return model.BoolValue(t)
	case map[string]interface{}:
		nested := model.NewEntity(name)
		for k, vv := range t {
			nested.Set(k, jsonAnyToValue(k, vv))
		}
		return model.EntityValue(nested)
	case []interface{}:
		var list []*model.Entity
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				ent := model.NewEntity(name)
				for k, vv := range m {
					ent.Set(k, jsonAnyToValue(k, vv))
				}
				list = append(list, ent)
			}
		}
		return model.EntityListValue(list)
	default:
		return model.Null()
	}
}
