package executor

import (
	"sync"

	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/op"
)

// selfFilter applies op as a filter between two positions of the same
// tuple, for a join whose left and right variable are already bound in
// the same plan subtree (a cyclic query-graph edge, spec.md §4.6).
type selfFilter struct {
	inner   Iterator
	lIdx    int
	rIdx    int
	operator op.Operator
}

// NewSelfFilter wraps inner, keeping only tuples for which
// operator.Filter holds between lhsVar and rhsVar.
func NewSelfFilter(inner Iterator, lhsVar, rhsVar string, operator op.Operator) Iterator {
	return &selfFilter{
		inner: inner,
		lIdx:  indexOf(inner.Vars(), lhsVar),
		rIdx:  indexOf(inner.Vars(), rhsVar),
		operator: operator,
	}
}

func (f *selfFilter) Next() (Tuple, bool) {
	for {
		t, ok := f.inner.Next()
		if !ok {
			return nil, false
		}
		if f.lIdx < 0 || f.rIdx < 0 {
			continue
		}
		matched, err := f.operator.Filter(t[f.lIdx], t[f.rIdx])
		if err != nil || !matched {
			continue
		}
		return t, true
	}
}

func (f *selfFilter) Vars() []string { return f.inner.Vars() }

// indexSeedJoin seeds candidate right-hand matches through the
// operator's index (RetrieveMatches) rather than scanning a materialized
// right-hand iterator: for each left tuple, it asks the operator for
// every node reachable from the left variable's match and intersects
// that with a once-materialized set of the right leaf's own matches
// (spec.md §4.7 index-seed join).
type indexSeedJoin struct {
	left     Iterator
	rightVar string
	lIdx     int
	operator op.Operator
	rightSet map[graph.NodeID]graph.Annotation

	curLeft   Tuple
	candidates []graph.Match
	pos       int
	vars      []string
}

// NewIndexSeedJoin joins left against a materialized rightSet (node ->
// annotation) keyed by rightVar, seeking candidates via operator.
func NewIndexSeedJoin(left Iterator, lhsVar, rightVar string, operator op.Operator, rightSet map[graph.NodeID]graph.Annotation) Iterator {
	return &indexSeedJoin{
		left:     left,
		rightVar: rightVar,
		lIdx:     indexOf(left.Vars(), lhsVar),
		operator: operator,
		rightSet: rightSet,
		vars:     append(append([]string(nil), left.Vars()...), rightVar),
	}
}

func (j *indexSeedJoin) Vars() []string { return j.vars }

func (j *indexSeedJoin) Next() (Tuple, bool) {
	for {
		for j.pos < len(j.candidates) {
			c := j.candidates[j.pos]
			j.pos++
			anno, ok := j.rightSet[c.Node]
			if !ok {
				continue
			}
			out := append(append(Tuple(nil), j.curLeft...), graph.Match{Node: c.Node, Anno: anno})
			return out, true
		}

		t, ok := j.left.Next()
		if !ok {
			return nil, false
		}
		if j.lIdx < 0 {
			continue
		}
		cands, err := j.operator.RetrieveMatches(t[j.lIdx])
		if err != nil {
			continue
		}
		j.curLeft = t
		j.candidates = cands
		j.pos = 0
	}
}

// parallelIndexSeedJoin runs the same index-seed probe as
// indexSeedJoin but fans the left tuples out across a worker pool that
// each call operator.RetrieveMatches independently, closing the shared
// output channel once every worker drains the queue (spec.md §4.7
// "Parallel index-seed join": LHS fed into a work queue, workers call
// retrieve_matches, shared bounded queue, pop returns false on
// shutdown).
type parallelIndexSeedJoin struct {
	out  <-chan Tuple
	vars []string
}

// NewParallelIndexSeedJoin is the worker-pool counterpart of
// NewIndexSeedJoin. numWorkers < 2 degrades to the sequential variant.
func NewParallelIndexSeedJoin(left Iterator, lhsVar, rightVar string, operator op.Operator, rightSet map[graph.NodeID]graph.Annotation, numWorkers, queueCapacity int) Iterator {
	if numWorkers < 2 {
		return NewIndexSeedJoin(left, lhsVar, rightVar, operator, rightSet)
	}

	lIdx := indexOf(left.Vars(), lhsVar)
	vars := append(append([]string(nil), left.Vars()...), rightVar)

	leftTuples := make(chan Tuple, queueCapacity)
	go func() {
		defer close(leftTuples)
		for {
			t, ok := left.Next()
			if !ok {
				return
			}
			leftTuples <- t
		}
	}()

	out := make(chan Tuple, queueCapacity)
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for lt := range leftTuples {
				if lIdx < 0 {
					continue
				}
				cands, err := operator.RetrieveMatches(lt[lIdx])
				if err != nil {
					continue
				}
				for _, c := range cands {
					anno, ok := rightSet[c.Node]
					if !ok {
						continue
					}
					out <- append(append(Tuple(nil), lt...), graph.Match{Node: c.Node, Anno: anno})
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return &parallelIndexSeedJoin{out: out, vars: vars}
}

func (j *parallelIndexSeedJoin) Next() (Tuple, bool) {
	t, ok := <-j.out
	return t, ok
}

func (j *parallelIndexSeedJoin) Vars() []string { return j.vars }

// nestedLoopJoin materializes the right iterator into a tuple slice on
// its first use and then probes it once per left tuple via
// operator.Filter, matching spec.md §4.7's "RHS caching" nested-loop
// join.
type nestedLoopJoin struct {
	left     Iterator
	right    Iterator
	lIdx     int
	rIdx     int
	operator op.Operator

	rightCache []Tuple
	cached     bool

	curLeft Tuple
	pos     int
	vars    []string
}

// NewNestedLoopJoin joins left and right via operator.Filter, comparing
// the lhsVar position of left against the rhsVar position of right.
func NewNestedLoopJoin(left, right Iterator, lhsVar, rhsVar string, operator op.Operator) Iterator {
	return &nestedLoopJoin{
		left:     left,
		right:    right,
		lIdx:     indexOf(left.Vars(), lhsVar),
		rIdx:     indexOf(right.Vars(), rhsVar),
		operator: operator,
		vars:     append(append([]string(nil), left.Vars()...), right.Vars()...),
	}
}

func (j *nestedLoopJoin) Vars() []string { return j.vars }

func (j *nestedLoopJoin) ensureCache() {
	if j.cached {
		return
	}
	for {
		t, ok := j.right.Next()
		if !ok {
			break
		}
		j.rightCache = append(j.rightCache, t)
	}
	j.cached = true
}

func (j *nestedLoopJoin) Next() (Tuple, bool) {
	j.ensureCache()
	for {
		for j.curLeft != nil && j.pos < len(j.rightCache) {
			rt := j.rightCache[j.pos]
			j.pos++
			if j.lIdx < 0 || j.rIdx < 0 {
				continue
			}
			matched, err := j.operator.Filter(j.curLeft[j.lIdx], rt[j.rIdx])
			if err != nil || !matched {
				continue
			}
			out := append(append(Tuple(nil), j.curLeft...), rt...)
			return out, true
		}

		t, ok := j.left.Next()
		if !ok {
			return nil, false
		}
		j.curLeft = t
		j.pos = 0
	}
}

// parallelNestedLoopJoin runs the same probe as nestedLoopJoin but
// fans the left tuples out across a worker pool into a bounded
// channel, closing it once every worker is done so Next never blocks
// forever (spec.md §4.7/§5).
type parallelNestedLoopJoin struct {
	out  <-chan Tuple
	vars []string
}

// NewParallelNestedLoopJoin is the worker-pool counterpart of
// NewNestedLoopJoin. numWorkers < 2 degrades to the sequential variant.
func NewParallelNestedLoopJoin(left, right Iterator, lhsVar, rhsVar string, operator op.Operator, numWorkers, queueCapacity int) Iterator {
	if numWorkers < 2 {
		return NewNestedLoopJoin(left, right, lhsVar, rhsVar, operator)
	}

	lIdx := indexOf(left.Vars(), lhsVar)
	rIdx := indexOf(right.Vars(), rhsVar)
	vars := append(append([]string(nil), left.Vars()...), right.Vars()...)

	var rightCache []Tuple
	for {
		t, ok := right.Next()
		if !ok {
			break
		}
		rightCache = append(rightCache, t)
	}

	leftTuples := make(chan Tuple, queueCapacity)
	go func() {
		defer close(leftTuples)
		for {
			t, ok := left.Next()
			if !ok {
				return
			}
			leftTuples <- t
		}
	}()

	out := make(chan Tuple, queueCapacity)
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for lt := range leftTuples {
				if lIdx < 0 || rIdx < 0 {
					continue
				}
				for _, rt := range rightCache {
					matched, err := operator.Filter(lt[lIdx], rt[rIdx])
					if err != nil || !matched {
						continue
					}
					out <- append(append(Tuple(nil), lt...), rt...)
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return &parallelNestedLoopJoin{out: out, vars: vars}
}

func (j *parallelNestedLoopJoin) Next() (Tuple, bool) {
	t, ok := <-j.out
	return t, ok
}

func (j *parallelNestedLoopJoin) Vars() []string { return j.vars }
