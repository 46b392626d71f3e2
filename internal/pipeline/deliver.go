package pipeline

import "github.com/snarg/mtc-agent/internal/metrics"

// NewDeliverObservation commits every observation carried by the entity to
// the agent, which assigns sequence numbers and fans them out to
// subscribers (spec.md §4.1 DeliverObservation row). It is a terminal
// transform: it has no children of its own. This is also where source and
// observation kind are both still in scope, so it's where
// ObservationsDeliveredTotal is incremented (mirroring the teacher's
// MQTTHandlerMessagesTotal.WithLabelValues(name).Inc() at its own dispatch
// site, internal/ingest/pipeline.go).
//
// KindObservationRaw entities also carry any malformed-line/unknown-data-item
// errors jsonmapper/shdrmapper accumulated without aborting the entity
// (Entity.Errors); this is the first and only point downstream of those
// mappers where the entity's source is still attached, so it's where
// ProtocolErrorsTotal is counted.
func NewDeliverObservation(agent Agent) *Node {
	return &Node{
		Name:  "DeliverObservation",
		Guard: OnKind(KindObservationRaw),
		Apply: func(e *Entity) *Entity {
			for _, o := range e.Observations {
				agent.DeliverObservation(o)
				metrics.ObservationsDeliveredTotal.WithLabelValues(e.Source, o.Kind.String()).Inc()
			}
			if len(e.Errors) > 0 {
				metrics.ProtocolErrorsTotal.WithLabelValues(e.Source).Add(float64(len(e.Errors)))
			}
			return nil
		},
	}
}

// NewDeliverAsset commits every asset carried by the entity to asset
// storage (spec.md §4.1 DeliverAsset row).
func NewDeliverAsset(agent Agent) *Node {
	return &Node{
		Name:  "DeliverAsset",
		Guard: OnKind(KindAssetRaw),
		Apply: func(e *Entity) *Entity {
			for _, a := range e.Assets {
				agent.DeliverAsset(a)
				metrics.AssetsDeliveredTotal.WithLabelValues(e.Source, "insert").Inc()
			}
			return nil
		},
	}
}

// NewDeliverAssetCommand executes RemoveAsset/RemoveAll against asset
// storage (spec.md §4.1 DeliverAssetCommand row).
func NewDeliverAssetCommand(agent Agent) *Node {
	return &Node{
		Name:  "DeliverAssetCommand",
		Guard: OnKind(KindAssetCommand),
		Apply: func(e *Entity) *Entity {
			agent.DeliverAssetCommand(e.AssetCmd, e.AssetCmdID, e.AssetCmdDevice, e.AssetCmdType)
			op := "remove"
			if e.AssetCmd == AssetCommandRemoveAll {
				op = "remove_all"
			}
			metrics.AssetsDeliveredTotal.WithLabelValues(e.Source, op).Inc()
			return nil
		},
	}
}

// NewDeliverConnectionStatus updates agent-device status and availability
// fan-out (spec.md §4.1 DeliverConnectionStatus row).
func NewDeliverConnectionStatus(agent Agent) *Node {
	return &Node{
		Name:  "DeliverConnectionStatus",
		Guard: OnKind(KindConnectionStatus),
		Apply: func(e *Entity) *Entity {
			agent.DeliverConnectionStatus(e.Source, e.Status)
			return nil
		},
	}
}

// NewDeliverCommand delivers a protocol command (uuid, manufacturer,
// calibration, …) to the agent (spec.md §4.1 DeliverCommand row).
func NewDeliverCommand(agent Agent) *Node {
	return &Node{
		Name:  "DeliverCommand",
		Guard: OnKind(KindCommand),
		Apply: func(e *Entity) *Entity {
			agent.DeliverCommand(e.Source, e.CommandName, e.CommandValue)
			return nil
		},
	}
}
