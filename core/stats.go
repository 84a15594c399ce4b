package core

import (
	"encoding/json"
	"fmt"

	"github.com/searchktools/webpool/core/observability"
	"github.com/searchktools/webpool/core/pools"
)

// Stats is a point-in-time view of the server's pools and traffic
type Stats struct {
	Server  string                 `json:"server"`
	Pool    pools.ThreadPoolStats  `json:"pool"`
	Buffers pools.BytePoolStats    `json:"buffers"`
	Traffic observability.Snapshot `json:"traffic"`
}

// Stats collects pool and traffic statistics
func (s *Server) Stats() Stats {
	return Stats{
		Server:  s.cfg.Name,
		Pool:    s.pool.Stats(),
		Buffers: s.buffers.Stats(),
		Traffic: s.monitor.Snapshot(),
	}
}

// StatsJSON returns Stats as indented JSON
func (s *Server) StatsJSON() string {
	data, _ := json.MarshalIndent(s.Stats(), "", "  ")
	return string(data)
}

// StatsText returns Stats as human-readable text
func (s *Server) StatsText() string {
	st := s.Stats()
	return fmt.Sprintf(`Server Statistics (%s)
======================

Thread Pool:
  Workers:   %d (%d live)
  Submitted: %d
  Completed: %d
  Panicked:  %d
  Pending:   %d

Buffers:
  Gets:      %d
  Puts:      %d
  Allocated: %d
  Oversized: %d
  Dropped:   %d

Traffic:
  Connections:  %d
  Requests:     %d
  Errors:       %d
  Bad requests: %d
  Rejected:     %d
  Bytes in/out: %d/%d
`,
		st.Server,
		st.Pool.Workers, st.Pool.LiveWorkers, st.Pool.Submitted, st.Pool.Completed, st.Pool.Panicked, st.Pool.Pending,
		st.Buffers.Gets, st.Buffers.Puts, st.Buffers.Allocated, st.Buffers.Oversized, st.Buffers.Dropped,
		st.Traffic.Connections, st.Traffic.Requests, st.Traffic.Errors, st.Traffic.BadRequests, st.Traffic.Rejected,
		st.Traffic.BytesIn, st.Traffic.BytesOut,
	)
}
