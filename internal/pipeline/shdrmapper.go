package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/snarg/mtc-agent/internal/model"
	"github.com/snarg/mtc-agent/internal/observation"
)

// unknownDataItemError and malformedShdrError are ProtocolError-flavored
// errors (spec.md §7) that ride along the entity rather than aborting it.
// ShdrTokenMapper stops reading the line at the offending key, keeps the
// observations parsed before it, and drops the entity only when there are
// none; DeliverObservation counts the errors in ProtocolErrorsTotal.
type unknownDataItemError struct{ id string }

func (e *unknownDataItemError) Error() string {
	return fmt.Sprintf("shdr: unknown data item %q", e.id)
}

type malformedShdrError struct {
	key  string
	want int
	have int
}

func (e *malformedShdrError) Error() string {
	return fmt.Sprintf("shdr: data item %q wants %d values, got %d", e.key, e.want, e.have)
}

// NewShdrTokenMapper maps `(key, value…)` token pairs against the device's
// data items, emitting one Observation per recognized key (spec.md §4.1
// ShdrTokenMapper row). A line may carry several data items back to back;
// each key's arity is determined by its data item's category/representation,
// matching the wire examples in spec.md §8 (S1: one value per SAMPLE; S2:
// five values — level, nativeCode, nativeSeverity, qualifier, message — per
// CONDITION).
//
// Asset bodies are not produced here: SHDR carries them through the
// adapter's multi-line aggregation (spec.md §4.2), which forwards the
// assembled body as a Message entity for AssetMapper/JsonMapper to parse.
func NewShdrTokenMapper(agent Agent) *Node {
	return &Node{
		Name:  "ShdrTokenMapper",
		Guard: OnKind(KindTimestampedTokens),
		Apply: func(e *Entity) *Entity {
			var obs []*observation.Observation
			tokens := e.Tokens
			for len(tokens) > 0 {
				key := tokens[0]
				rest := tokens[1:]

				di, ok := agent.DataItem(key)
				if !ok {
					e.AddError(&unknownDataItemError{id: key})
					break
				}

				if di.IsDataSet() {
					// A data-set/table key consumes the remainder of the
					// line: entries are "key=value" cells (spec.md §3
					// DataSetEvent/TableEvent).
					obs = append(obs, buildDataSet(di, e.Timestamp, rest))
					tokens = nil
					continue
				}

				n := 1
				if di.IsCondition() {
					n = 5 // level, nativeCode, nativeSeverity, qualifier, message
				}
				if len(rest) < n {
					e.AddError(&malformedShdrError{key: key, want: n, have: len(rest)})
					break
				}
				values := rest[:n]
				tokens = rest[n:]

				var o *observation.Observation
				if di.IsCondition() {
					o = buildCondition(di, e.Timestamp, values)
				} else {
					o = buildScalar(di, e.Timestamp, values[0])
				}
				if o != nil {
					obs = append(obs, o)
				}
			}
			if len(obs) == 0 {
				return nil
			}
			return &Entity{Kind: KindObservationRaw, Source: e.Source, Timestamp: e.Timestamp, Observations: obs, Errors: e.Errors}
		},
	}
}

// buildScalar builds a Sample/Event/Message/Alarm/AssetEvent observation
// from a single value token, leaving unit conversion to ConvertSample and
// case-folding to UpcaseValue further down the pipeline.
func buildScalar(di *model.DataItem, ts time.Time, raw string) *observation.Observation {
	kind := observation.KindEvent
	switch {
	case di.Category == model.CategorySample:
		kind = observation.KindSample
	case di.Type == "MESSAGE":
		kind = observation.KindMessage
	case di.Type == "ALARM":
		kind = observation.KindAlarm
	}

	if raw == "" || raw == model.Unavailable {
		return observation.New(di.ID, kind, ts, model.StringValue(model.Unavailable))
	}

	if kind == observation.KindSample {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return observation.New(di.ID, kind, ts, model.StringValue(model.Unavailable))
		}
		return observation.New(di.ID, kind, ts, model.DoubleValue(f))
	}
	return observation.New(di.ID, kind, ts, model.StringValue(raw))
}

// buildCondition builds a Condition observation from the five fixed tokens
// (spec.md §8 S2): level, nativeCode, nativeSeverity, qualifier, message.
func buildCondition(di *model.DataItem, ts time.Time, values []string) *observation.Observation {
	level := parseLevel(values[0])
	o := observation.New(di.ID, observation.KindCondition, ts, model.StringValue(values[4]))
	o.Condition = &observation.Condition{
		DataItemID:     di.ID,
		Timestamp:      ts,
		Level:          level,
		NativeCode:     values[1],
		NativeSeverity: values[2],
		Qualifier:      values[3],
		Value:          model.StringValue(values[4]),
	}
	return o
}

func parseLevel(s string) observation.Level {
	switch strings.ToUpper(s) {
	case "WARNING":
		return observation.LevelWarning
	case "FAULT":
		return observation.LevelFault
	case "UNAVAILABLE":
		return observation.LevelUnavailable
	default:
		return observation.LevelNormal
	}
}

// buildDataSet parses "key=value" (or "key=" for a removed entry) cells
// from the remaining tokens into a DataSetEvent or TableEvent observation.
// A line with no cells at all is treated as a reset to the empty set,
// bypassing Checkpoint's entry-wise merge (observation.Observation.ResetTriggered).
func buildDataSet(di *model.DataItem, ts time.Time, cells []string) *observation.Observation {
	kind := observation.KindDataSetEvent
	if di.Representation == model.RepresentationTable {
		kind = observation.KindTableEvent
	}

	var entries model.DataSet
	resetTriggered := true
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		resetTriggered = false
		k, v, found := strings.Cut(cell, "=")
		if !found {
			continue
		}
		entries = append(entries, model.DataSetEntry{Key: k, Value: v, Removed: v == ""})
	}

	o := observation.New(di.ID, kind, ts, model.DataSetValue(entries))
	o.ResetTriggered = resetTriggered
	return o
}
