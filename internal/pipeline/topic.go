package pipeline

import "strings"

// TopicRoute binds an MQTT topic pattern to an optional device uuid
// (spec.md §6 "Configured topics may be bare... or <deviceUuid>:<pattern>").
type TopicRoute struct {
	Pattern    string
	DeviceUUID string
}

// matchTopic reports whether topic matches an MQTT-style subscription
// pattern: "+" matches exactly one segment, a trailing "#" matches every
// remaining segment.
func matchTopic(pattern, topic string) bool {
	pSegs := strings.Split(pattern, "/")
	tSegs := strings.Split(topic, "/")

	for i, p := range pSegs {
		if p == "#" {
			return true
		}
		if i >= len(tSegs) {
			return false
		}
		if p != "+" && p != tSegs[i] {
			return false
		}
	}
	return len(pSegs) == len(tSegs)
}

// NewTopicMapper matches an arriving Message's topic against configured
// routes and emits JsonMessage or DataMessage depending on the payload's
// leading byte (spec.md §4.1 TopicMapper row, §6 "Payloads are either SHDR
// lines... or JSON").
func NewTopicMapper(routes []TopicRoute) *Node {
	return &Node{
		Name:  "TopicMapper",
		Guard: OnKind(KindMessage),
		Apply: func(e *Entity) *Entity {
			deviceUUID := ""
			matched := len(routes) == 0 // no configured routes: accept everything
			for _, r := range routes {
				if matchTopic(r.Pattern, e.Topic) {
					matched = true
					deviceUUID = r.DeviceUUID
					break
				}
			}
			if !matched {
				return nil
			}

			body := strings.TrimSpace(string(e.Payload))
			kind := KindDataMessage
			if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
				kind = KindJSONMessage
			}
			return &Entity{
				Kind:            kind,
				Source:          e.Source,
				Topic:           e.Topic,
				Payload:         e.Payload,
				Timestamp:       e.Timestamp,
				RouteDeviceUUID: deviceUUID,
			}
		},
	}
}

// NewDataMapper feeds an MQTT message's SHDR-line payload into the
// tokenizer sub-pipeline by re-emitting it as a Data entity (spec.md §4.1
// DataMapper row).
func NewDataMapper() *Node {
	return &Node{
		Name:  "DataMapper",
		Guard: OnKind(KindDataMessage),
		Apply: func(e *Entity) *Entity {
			return NewData(e.Source, string(e.Payload), e.Timestamp)
		},
	}
}
