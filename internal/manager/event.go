package manager

import (
	"fmt"

	"github.com/nornicorpus/nornicorpus/internal/corpusgraph"
	"github.com/nornicorpus/nornicorpus/internal/graph"
)

// EventKind is one of the eight graph update script event kinds of
// spec.md §6.
type EventKind string

const (
	EventAddNode         EventKind = "AddNode"
	EventDeleteNode      EventKind = "DeleteNode"
	EventAddNodeLabel    EventKind = "AddNodeLabel"
	EventDeleteNodeLabel EventKind = "DeleteNodeLabel"
	EventAddEdge         EventKind = "AddEdge"
	EventDeleteEdge      EventKind = "DeleteEdge"
	EventAddEdgeLabel    EventKind = "AddEdgeLabel"
	EventDeleteEdgeLabel EventKind = "DeleteEdgeLabel"
)

// Event is one entry of a graph update script (spec.md §6). ChangeID is
// stamped by Script.Finalize; fields not used by a given Kind are left
// zero.
type Event struct {
	ChangeID uint64 `json:"change_id"`
	Kind     EventKind `json:"kind"`

	Name string `json:"name,omitempty"` // AddNode/DeleteNode/*NodeLabel
	Type string `json:"type,omitempty"` // AddNode's node type

	SrcName string `json:"src_name,omitempty"` // *Edge*
	TgtName string `json:"tgt_name,omitempty"`
	Layer         string              `json:"layer,omitempty"`
	ComponentType graph.ComponentType `json:"component_type"`
	ComponentName string              `json:"component_name,omitempty"`

	NS    string `json:"ns,omitempty"`    // *Label events
	Label string `json:"label,omitempty"`
	Value string `json:"value,omitempty"`
}

func (e Event) component() graph.Component {
	return graph.Component{Type: e.ComponentType, Layer: e.Layer, Name: e.ComponentName}
}

// Apply applies e to c, per the no-op rules named alongside each event
// kind in spec.md §6.
func (e Event) Apply(c *corpusgraph.Corpus) error {
	switch e.Kind {
	case EventAddNode:
		nodeType := graph.NodeType(e.Type)
		if nodeType == "" {
			nodeType = graph.NodeTypeNode
		}
		c.AddNode(e.Name, nodeType)
	case EventDeleteNode:
		c.DeleteNode(e.Name)
	case EventAddNodeLabel:
		c.AddNodeLabel(e.Name, e.NS, e.Label, e.Value)
	case EventDeleteNodeLabel:
		c.DeleteNodeLabel(e.Name, e.NS, e.Label)
	case EventAddEdge:
		return c.AddEdge(e.SrcName, e.TgtName, e.component())
	case EventDeleteEdge:
		return c.DeleteEdge(e.SrcName, e.TgtName, e.component())
	case EventAddEdgeLabel:
		return c.AddEdgeLabel(e.SrcName, e.TgtName, e.component(), e.NS, e.Label, e.Value)
	case EventDeleteEdgeLabel:
		return c.DeleteEdgeLabel(e.SrcName, e.TgtName, e.component(), e.NS, e.Label)
	default:
		return fmt.Errorf("manager: unknown event kind %q", e.Kind)
	}
	return nil
}

// Script is an ordered graph update script: a change-id-stamped list of
// events plus the watermark up to which they are considered consistent
// (spec.md §4.8/§6).
type Script struct {
	Events                []Event `json:"events"`
	LastConsistentChangeID uint64 `json:"last_consistent_change_id"`
	consistent            bool
}

// NewScript wraps events into a not-yet-finalized script.
func NewScript(events []Event) *Script {
	return &Script{Events: events}
}

// Finalize stamps every event with a monotonically increasing change-id
// starting at startID+1 and sets the watermark to the last id assigned,
// marking the script consistent (spec.md §4.8 step 2). A no-op if the
// script was already loaded as consistent (e.g. replayed from disk).
func (s *Script) Finalize(startID uint64) {
	if s.consistent {
		return
	}
	id := startID
	for i := range s.Events {
		id++
		s.Events[i].ChangeID = id
	}
	s.LastConsistentChangeID = id
	s.consistent = true
}

// Apply applies every event whose ChangeID is within the watermark, in
// order, to c. Stops and returns the first error, per §7's "partial
// failures leave the in-memory corpus unchanged": Apply itself does not
// roll back, and on failure Manager.ApplyUpdate discards the partially
// updated corpus so it is reloaded from disk.
func (s *Script) Apply(c *corpusgraph.Corpus) error {
	for _, e := range s.Events {
		if e.ChangeID > s.LastConsistentChangeID {
			continue
		}
		if err := e.Apply(c); err != nil {
			return fmt.Errorf("manager: apply event %s (change %d): %w", e.Kind, e.ChangeID, err)
		}
	}
	return nil
}

// ReplayAbove applies only events with ChangeID > watermark, used during
// crash recovery to bring a loaded backup snapshot forward (spec.md §4.8
// "Crash recovery").
func (s *Script) ReplayAbove(c *corpusgraph.Corpus, watermark uint64) error {
	for _, e := range s.Events {
		if e.ChangeID <= watermark || e.ChangeID > s.LastConsistentChangeID {
			continue
		}
		if err := e.Apply(c); err != nil {
			return fmt.Errorf("manager: replay event %s (change %d): %w", e.Kind, e.ChangeID, err)
		}
	}
	return nil
}
