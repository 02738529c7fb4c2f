package anno

import (
	"testing"

	"github.com/nornicorpus/nornicorpus/internal/graph"
)

func key(ns, name graph.StringID) graph.AnnoKey {
	return graph.AnnoKey{Namespace: ns, Name: name}
}

func TestAddForwardInverseConsistency(t *testing.T) {
	s := NewStore[graph.NodeID]()
	k := key(1, 2)
	a := graph.Annotation{Key: k, Value: 5}
	s.Add(1, a)

	got, ok := s.Get(1, k)
	if !ok || got != a {
		t.Fatalf("forward lookup failed: %+v ok=%v", got, ok)
	}
	items := s.ByValue(a)
	if len(items) != 1 || items[0] != 1 {
		t.Fatalf("inverse lookup failed: %+v", items)
	}
	if s.KeyCount(k) != 1 {
		t.Fatalf("expected key count 1, got %d", s.KeyCount(k))
	}
}

func TestDeleteRemovesBothMaps(t *testing.T) {
	s := NewStore[graph.NodeID]()
	k := key(1, 2)
	a := graph.Annotation{Key: k, Value: 5}
	s.Add(1, a)
	s.Delete(1, k)

	if _, ok := s.Get(1, k); ok {
		t.Fatal("forward entry survived delete")
	}
	if items := s.ByValue(a); len(items) != 0 {
		t.Fatalf("inverse entry survived delete: %+v", items)
	}
	if s.KeyCount(k) != 0 {
		t.Fatalf("key counter should be gone, got %d", s.KeyCount(k))
	}
}

func TestDeleteNonexistentIsNoop(t *testing.T) {
	s := NewStore[graph.NodeID]()
	s.Delete(1, key(1, 2)) // must not panic
}

func TestDeleteAll(t *testing.T) {
	s := NewStore[graph.NodeID]()
	s.Add(1, graph.Annotation{Key: key(0, 1), Value: 10})
	s.Add(1, graph.Annotation{Key: key(0, 2), Value: 20})
	s.DeleteAll(1)
	if got := s.GetAll(1); len(got) != 0 {
		t.Fatalf("expected no annotations left, got %+v", got)
	}
}

func TestKeyCounterExactness(t *testing.T) {
	s := NewStore[graph.NodeID]()
	k := key(0, 1)
	for i := graph.NodeID(0); i < 10; i++ {
		s.Add(i, graph.Annotation{Key: k, Value: graph.StringID(i)})
	}
	if s.KeyCount(k) != 10 {
		t.Fatalf("expected 10, got %d", s.KeyCount(k))
	}
	s.Delete(3, k)
	if s.KeyCount(k) != 9 {
		t.Fatalf("expected 9 after delete, got %d", s.KeyCount(k))
	}
}

func TestCalculateStatisticsAndGuessMaxCount(t *testing.T) {
	s := NewStore[graph.NodeID]()
	k := key(0, 1)
	values := []string{"S", "NP", "VP", "S", "S", "PP"}
	strs := make([]string, 0)
	strOf := func(id graph.StringID) string { return strs[id] }
	for i, v := range values {
		strs = append(strs, v)
		s.Add(graph.NodeID(i), graph.Annotation{Key: k, Value: graph.StringID(i)})
	}

	s.CalculateStatistics(strOf, 2500, 250)
	count := s.GuessMaxCount(nil, "A", "Z")
	if count <= 0 {
		t.Fatalf("expected positive estimate, got %d", count)
	}
}

func TestGuessMaxCountNoStatisticsReturnsZero(t *testing.T) {
	s := NewStore[graph.NodeID]()
	if got := s.GuessMaxCount(nil, "a", "z"); got != 0 {
		t.Fatalf("expected 0 without statistics, got %d", got)
	}
}
