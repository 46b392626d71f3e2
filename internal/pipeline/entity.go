// Package pipeline implements the typed observation pipeline: a pluggable
// transform graph that turns raw bytes or messages into typed, validated
// observations and assets (spec.md §4.1), grounded on the teacher's
// switch-based message router (internal/ingest/pipeline.go dispatch,
// internal/ingest/router.go ParseTopic) generalized into a proper graph per
// SPEC_FULL.md §16 / Design Note §9.
package pipeline

import (
	"time"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

// EntityKind tags the variant an Entity currently carries as it moves
// through the pipeline (spec.md §4.1's root transform guard list, plus the
// intermediate shapes each standard transform introduces).
type EntityKind int

const (
	KindData EntityKind = iota
	KindMessage
	KindConnectionStatus
	KindCommand
	KindAssetRaw
	KindObservationRaw

	KindTokens
	KindTimestampedTokens
	KindJSONMessage
	KindDataMessage

	KindObservation
	KindAsset
	KindAssetCommand
)

// ConnectionState mirrors the SHDR/MQTT adapter connection states relevant
// to the pipeline's ConnectionStatus entity (spec.md §4.2, §4.4).
type ConnectionState int

const (
	StatusConnecting ConnectionState = iota
	StatusConnected
	StatusDisconnected
)

// AssetCommandKind distinguishes RemoveAsset from RemoveAll (spec.md §4.1
// DeliverAssetCommand).
type AssetCommandKind int

const (
	AssetCommandRemove AssetCommandKind = iota
	AssetCommandRemoveAll
)

// Entity is the pipeline's tagged raw/intermediate value, matching the
// teacher's preference for explicit typed fields (e.g.
// database.RawMessageRow) over interface-hierarchy polymorphism. Only the
// fields relevant to Kind are populated at any point.
type Entity struct {
	Kind      EntityKind
	Source    string // adapter/source name that originated this entity
	Timestamp time.Time

	// KindData / KindMessage raw payload.
	Line    string
	Topic   string
	Payload []byte

	// KindTokens / KindTimestampedTokens.
	Tokens []string

	// KindConnectionStatus.
	Status ConnectionState

	// KindCommand.
	CommandName  string
	CommandValue string

	// KindJSONMessage / KindDataMessage: the device uuid TopicMapper bound
	// this message's topic to, if any (spec.md §6 "<deviceUuid>:<pattern>").
	RouteDeviceUUID string

	// KindObservation (single observation ready for delivery) and
	// KindObservationRaw (candidates emitted by ShdrTokenMapper/JsonMapper,
	// still subject to filters).
	Observations []*observation.Observation

	// KindAsset / KindAssetRaw.
	Assets []*model.Asset

	// KindAssetCommand.
	AssetCmd       AssetCommandKind
	AssetCmdID     string
	AssetCmdDevice string
	AssetCmdType   string

	// Errors accumulated along the way without aborting the entity
	// (spec.md §7 "transforms never throw; they return empty and
	// optionally append to an error list that rides along the entity").
	Errors []error
}

func (e *Entity) AddError(err error) {
	e.Errors = append(e.Errors, err)
}

func NewData(source, line string, ts time.Time) *Entity {
	return &Entity{Kind: KindData, Source: source, Line: line, Timestamp: ts}
}

func NewMessage(source, topic string, payload []byte, ts time.Time) *Entity {
	return &Entity{Kind: KindMessage, Source: source, Topic: topic, Payload: payload, Timestamp: ts}
}

func NewConnectionStatus(source string, status ConnectionState, ts time.Time) *Entity {
	return &Entity{Kind: KindConnectionStatus, Source: source, Status: status, Timestamp: ts}
}

func NewCommand(source, name, value string, ts time.Time) *Entity {
	return &Entity{Kind: KindCommand, Source: source, CommandName: name, CommandValue: value, Timestamp: ts}
}
