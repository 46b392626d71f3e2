package pipeline

import (
	"sync"
	"time"
)

// timestampFormats are the ISO-8601 layouts the SHDR wire format accepts for
// a leading timestamp token (spec.md §6 "timestamp is optional ISO-8601
// UTC").
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseShdrTimestamp(tok string) (time.Time, bool) {
	if tok == "" || tok == "*" {
		return time.Time{}, false
	}
	for _, layout := range timestampFormats {
		if t, err := time.Parse(layout, tok); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TimestampMode selects ExtractTimestamp's interpretation of the device
// clock (spec.md §4.1 row, detailed in SPEC_FULL.md §16).
type TimestampMode int

const (
	// TimestampAbsolute forwards the parsed device timestamp unchanged.
	TimestampAbsolute TimestampMode = iota
	// TimestampRelative anchors the first timestamp seen on a connection
	// against the agent's wall clock and offsets every subsequent
	// timestamp by the same delta (SPEC_FULL.md §16 RelativeTime mode).
	TimestampRelative
)

// relativeAnchor tracks the (deviceClock, agentClock) pair ExtractTimestamp
// needs for TimestampRelative mode. One anchor is scoped to a single
// connection/strand, matching spec.md §5's "no shared state except the
// agent contract" by living inside the Node's closure rather than globally.
type relativeAnchor struct {
	mu          sync.Mutex
	set         bool
	deviceClock time.Time
	agentClock  time.Time
}

func (a *relativeAnchor) resolve(deviceTime, now time.Time) time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.set {
		a.deviceClock = deviceTime
		a.agentClock = now
		a.set = true
	}
	return a.agentClock.Add(deviceTime.Sub(a.deviceClock))
}

// NewExtractTimestamp parses a leading ISO-8601 timestamp from the token
// list (spec.md §4.1 ExtractTimestamp row). A literal "*" or an unparsable
// leading token means no timestamp was supplied; the agent's wall clock at
// receipt is used instead, as spec.md §6 requires regardless of mode.
func NewExtractTimestamp(mode TimestampMode, now func() time.Time) *Node {
	anchor := &relativeAnchor{}
	return &Node{
		Name:  "ExtractTimestamp",
		Guard: OnKind(KindTokens),
		Apply: func(e *Entity) *Entity {
			if len(e.Tokens) == 0 {
				return nil
			}
			// The leading slot is always the timestamp field (spec.md §6
			// "[<timestamp>]|<key>|<value>..."); its content may be a real
			// ISO-8601 stamp, empty, or the "*" placeholder, but the slot
			// itself is always consumed.
			ts := now()
			if dt, ok := parseShdrTimestamp(e.Tokens[0]); ok {
				if mode == TimestampRelative {
					ts = anchor.resolve(dt, ts)
				} else {
					ts = dt
				}
			}
			return &Entity{
				Kind:      KindTimestampedTokens,
				Source:    e.Source,
				Timestamp: ts,
				Tokens:    e.Tokens[1:],
			}
		},
	}
}

// NewIgnoreTimestamp discards any embedded timestamp token outright and
// always uses the agent's wall clock at receipt (spec.md §4.1
// IgnoreTimestamp row).
func NewIgnoreTimestamp(now func() time.Time) *Node {
	return &Node{
		Name:  "IgnoreTimestamp",
		Guard: OnKind(KindTokens),
		Apply: func(e *Entity) *Entity {
			if len(e.Tokens) == 0 {
				return nil
			}
			return &Entity{
				Kind:      KindTimestampedTokens,
				Source:    e.Source,
				Timestamp: now(),
				Tokens:    e.Tokens[1:],
			}
		},
	}
}
