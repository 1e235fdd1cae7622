package training

import (
	"fmt"
)

// DefaultFanOut is the branching factor of the worker topology. The thread
// hierarchy is laid out for 12-way fan-out (one position per symmetry group);
// workers rotate through the positions when there are fewer than FanOut of
// them.
const DefaultFanOut = 12

// Topology describes the shape of the worker tree. Only the flat arrangement
// (depth 1: one coordinator, one level of workers) is currently executable;
// FanOut and Depth exist so deeper trees can be configured without changing
// the round protocol.
type Topology struct {
	FanOut int // symmetry positions per level
	Depth  int // worker levels below the coordinator
}

// DefaultTopology returns the flat 12-way topology.
func DefaultTopology() Topology {
	return Topology{FanOut: DefaultFanOut, Depth: 1}
}

func (t Topology) validate() error {
	if t.FanOut <= 0 {
		return fmt.Errorf("topology fan-out must be positive, got %d", t.FanOut)
	}
	if t.Depth != 1 {
		return fmt.Errorf("topology depth %d not supported: only the flat coordinator+workers arrangement (depth 1) is implemented", t.Depth)
	}
	return nil
}

// symmetryGroup assigns a worker index to one of the FanOut positions.
func (t Topology) symmetryGroup(workerIndex int) int {
	return workerIndex % t.FanOut
}
