package wsock

import (
	"encoding/json"
	"fmt"
	"strings"
)

// outFrame is the server -> client envelope (spec.md §4.6 "WebSocket
// envelope"): success carries Body (the dispatched handler's response,
// verbatim), a failure carries Error as "<Kind>: <message>"; both carry
// the originating request's id.
type outFrame struct {
	ID    string `json:"id"`
	Body  string `json:"body,omitempty"`
	Error string `json:"error,omitempty"`
}

// parseFrame decodes a client -> server request frame
// ({"id":"...","request":"...", ...params}) into its id, command, and the
// remaining fields as candidate query/body parameters.
func parseFrame(raw []byte) (id, command string, params map[string]json.RawMessage, err error) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", "", nil, fmt.Errorf("request frame must be a JSON object: %w", err)
	}
	idRaw, ok := frame["id"]
	if !ok {
		return "", "", nil, fmt.Errorf("request frame must carry an id")
	}
	id = rawToString(idRaw)

	reqRaw, ok := frame["request"]
	if !ok {
		return id, "", nil, fmt.Errorf("request frame must carry a request command")
	}
	command = rawToString(reqRaw)

	params = make(map[string]json.RawMessage, len(frame))
	for k, v := range frame {
		if k == "id" || k == "request" {
			continue
		}
		params[k] = v
	}
	return id, command, params, nil
}

// rawToString coerces a JSON scalar to its query-string form: a JSON
// string unquotes, anything else (number, bool) is already its own
// textual representation.
func rawToString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
