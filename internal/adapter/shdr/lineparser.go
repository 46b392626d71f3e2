// Package shdr implements the SHDR line-oriented TCP adapter: a stateful
// client (Closed → Resolving → Connecting → Connected → Heartbeating…,
// spec.md §4.2) grounded on
// _examples/original_source/src/mtconnect/source/adapter/shdr/connector.cpp,
// reimplemented with blocking net.Conn reads on an owning goroutine instead
// of asio's callback chaining — the same state machine, idiomatic Go I/O.
package shdr

import (
	"strconv"
	"strings"
	"time"
)

// LineKind classifies a trimmed SHDR line (spec.md §4.2/§6).
type LineKind int

const (
	LineData LineKind = iota
	LineBlank
	LinePing
	LinePong
	LineCommand
	LineMultilineBegin
	LineMultilineEnd
)

// ClassifiedLine is the result of classifying one raw line.
type ClassifiedLine struct {
	Kind         LineKind
	CommandName  string // LineCommand
	CommandValue string // LineCommand
	PongInterval time.Duration // LinePong
	MultilineTag string        // LineMultilineBegin/LineMultilineEnd
}

// maxHeartbeat bounds a negotiated PONG interval (spec.md §4.2 "bounded to
// (0, 30 minutes)").
const maxHeartbeat = 30 * time.Minute

// classifyLine trims trailing whitespace and classifies a raw SHDR line,
// matching Connector::processLine/parseSocketBuffer's dispatch in the
// original agent.
func classifyLine(raw string) ClassifiedLine {
	line := strings.TrimRight(raw, " \t\r\n")
	if line == "" {
		return ClassifiedLine{Kind: LineBlank}
	}

	if strings.HasPrefix(line, "---multiline---") {
		return ClassifiedLine{Kind: LineMultilineBegin, MultilineTag: strings.TrimSpace(strings.TrimPrefix(line, "---multiline---"))}
	}
	if strings.HasPrefix(line, "---") && strings.HasSuffix(line, "---") && len(line) > 6 {
		return ClassifiedLine{Kind: LineMultilineEnd, MultilineTag: strings.Trim(line, "-")}
	}

	if strings.HasPrefix(line, "*") {
		rest := strings.TrimSpace(strings.TrimPrefix(line, "*"))
		if rest == "PING" {
			return ClassifiedLine{Kind: LinePing}
		}
		if strings.HasPrefix(rest, "PONG") {
			ms := strings.TrimSpace(strings.TrimPrefix(rest, "PONG"))
			if n, err := strconv.Atoi(ms); err == nil {
				d := time.Duration(n) * time.Millisecond
				if d > 0 && d < maxHeartbeat {
					return ClassifiedLine{Kind: LinePong, PongInterval: d}
				}
			}
			return ClassifiedLine{Kind: LinePong}
		}
		name, value, _ := strings.Cut(rest, ":")
		return ClassifiedLine{Kind: LineCommand, CommandName: strings.TrimSpace(name), CommandValue: strings.TrimSpace(value)}
	}

	return ClassifiedLine{Kind: LineData}
}

// multilineAggregator accumulates lines between "---multiline--- <tag>" and
// "---<tag>---" markers (spec.md §4.2).
type multilineAggregator struct {
	tag string
	buf strings.Builder
}

func (m *multilineAggregator) active() bool { return m.tag != "" }

func (m *multilineAggregator) begin(tag string) {
	m.tag = tag
	m.buf.Reset()
}

// feed appends a line to the in-progress aggregation. If line ends the
// aggregation (matches the tag), it returns the assembled body and resets.
func (m *multilineAggregator) feed(cl ClassifiedLine, raw string) (body string, done bool) {
	if cl.Kind == LineMultilineEnd && cl.MultilineTag == m.tag {
		body = m.buf.String()
		m.tag = ""
		m.buf.Reset()
		return body, true
	}
	if m.buf.Len() > 0 {
		m.buf.WriteByte('\n')
	}
	m.buf.WriteString(strings.TrimRight(raw, " \t\r\n"))
	return "", false
}
