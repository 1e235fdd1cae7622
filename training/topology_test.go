package training

import (
	"testing"
)

func TestDefaultTopology(t *testing.T) {
	topo := DefaultTopology()
	if topo.FanOut != 12 || topo.Depth != 1 {
		t.Errorf("Expected flat 12-way topology, got %+v", topo)
	}
	if err := topo.validate(); err != nil {
		t.Errorf("Default topology should validate, got %v", err)
	}
}

func TestTopologyValidation(t *testing.T) {
	if err := (Topology{FanOut: 0, Depth: 1}).validate(); err == nil {
		t.Error("Expected error for zero fan-out")
	}
	if err := (Topology{FanOut: 12, Depth: 2}).validate(); err == nil {
		t.Error("Expected error for unsupported depth")
	}
	if err := (Topology{FanOut: 4, Depth: 1}).validate(); err != nil {
		t.Errorf("Custom flat topology should validate, got %v", err)
	}
}

func TestSymmetryGroupAssignment(t *testing.T) {
	topo := DefaultTopology()

	// Workers fill the twelve positions in order and then wrap around.
	for i := 0; i < 30; i++ {
		want := i % 12
		if got := topo.symmetryGroup(i); got != want {
			t.Errorf("Worker %d: expected symmetry group %d, got %d", i, want, got)
		}
	}
}
