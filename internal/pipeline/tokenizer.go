package pipeline

import "strings"

// NewShdrTokenizer splits a pipe-delimited SHDR line into an ordered token
// list, preserving empty fields (spec.md §4.1 ShdrTokenizer row), grounded
// on the teacher's simple field-splitting in internal/ingest/router.go
// ParseTopic generalized to the SHDR wire format (spec.md §6).
func NewShdrTokenizer() *Node {
	return &Node{
		Name:  "ShdrTokenizer",
		Guard: OnKind(KindData),
		Apply: func(e *Entity) *Entity {
			line := strings.TrimRight(e.Line, " \t\r\n")
			if line == "" {
				return nil
			}
			return &Entity{
				Kind:      KindTokens,
				Source:    e.Source,
				Timestamp: e.Timestamp,
				Tokens:    strings.Split(line, "|"),
			}
		},
	}
}
