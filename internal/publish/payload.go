package publish

import (
	"github.com/vk/stagegrid/internal/runner"
	"github.com/vk/stagegrid/internal/schedule"
	"github.com/vk/stagegrid/internal/scheduler"
)

// NodeResult is the wire form of one node's outcome.
type NodeResult struct {
	Node   string `json:"node"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Payload is the wire form of one tick.
type Payload struct {
	Run       string       `json:"run,omitempty"`
	Frame     uint64       `json:"frame"`
	Seq       uint64       `json:"seq"`
	State     string       `json:"state"`
	Rebuilt   bool         `json:"rebuilt"`
	OK        bool         `json:"ok"`
	ElapsedUS int64        `json:"elapsed_us"`
	Nodes     []NodeResult `json:"nodes"`
	Omitted   []string     `json:"omitted,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// NewPayload summarizes a tick. state is the store state after the tick.
func NewPayload(res *scheduler.TickResult, state schedule.State) Payload {
	p := Payload{
		Frame:   res.Frame,
		State:   state.String(),
		Rebuilt: res.Rebuilt,
	}
	if err := res.Err(); err != nil {
		p.Error = err.Error()
	}
	for _, o := range res.Omitted {
		p.Omitted = append(p.Omitted, o.Entity.String())
	}

	rep := res.Report
	if rep == nil {
		return p
	}
	p.Seq = rep.Seq
	p.OK = rep.OK() && res.RebuildErr == nil
	p.ElapsedUS = rep.Elapsed.Microseconds()
	p.Nodes = make([]NodeResult, len(rep.Results))
	for i, r := range rep.Results {
		p.Nodes[i] = NodeResult{Node: r.Node, Status: r.Status.String()}
		if r.Err != nil && r.Status != runner.StatusOK {
			p.Nodes[i].Error = r.Err.Error()
		}
	}
	return p
}
