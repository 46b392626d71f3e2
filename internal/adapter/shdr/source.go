package shdr

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/mtc-agent/internal/pipeline"
)

// Source wires a Connector to a pipeline, forming one SHDR adapter strand:
// every entity reaching the pipeline from this source is driven through
// Pipeline.Run on the goroutine the Connector's read loop runs on, so a
// single source's observations remain in arrival order up to PeriodFilter
// (spec.md §5 ordering guarantees).
type Source struct {
	name     string
	pipeline *pipeline.Pipeline
	log      zerolog.Logger

	// Archive, if set, records every raw line for audit purposes before it
	// enters the pipeline (SPEC_FULL §17.2), bound to an
	// internal/archive.Archiver by the caller.
	Archive func(route, source string, payload []byte)
}

func NewSource(name string, p *pipeline.Pipeline, log zerolog.Logger) *Source {
	return &Source{name: name, pipeline: p, log: log}
}

func (s *Source) HandleData(source, line string, ts time.Time) {
	if s.Archive != nil {
		s.Archive("shdr", source, []byte(line))
	}
	s.pipeline.Run(pipeline.NewData(source, line, ts))
}

func (s *Source) HandleCommand(source, name, value string) {
	s.pipeline.Run(pipeline.NewCommand(source, name, value, time.Now()))
}

func (s *Source) HandleStatus(source string, status pipeline.ConnectionState) {
	s.pipeline.Run(pipeline.NewConnectionStatus(source, status, time.Now()))
}
