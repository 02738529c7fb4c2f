package planner

import (
	"math"
	"math/rand"

	"github.com/nornicorpus/nornicorpus/internal/config"
	"github.com/nornicorpus/nornicorpus/internal/op"
)

// planRand is a dedicated, deterministically-seeded source for the
// hill-climb search: the planner's local search does not need a true
// random stream, only variety between generations.
var planRand = rand.New(rand.NewSource(1))

// searchJoinOrder picks the join application order: an exhaustive
// permutation search up to cfg.ExhaustiveOrderThreshold joins, else a
// hill-climbing local search that stops after cfg.HillClimbRejectFactor
// times the join count consecutive non-improving generations (spec.md
// §4.6 pass 4).
func searchJoinOrder(joins []JoinSpec, operators []op.Operator, est CardinalityEstimator, vars map[string]NodeSpec, cfg config.PlannerConfig) []int {
	n := len(joins)
	if n == 0 {
		return nil
	}
	if n <= cfg.ExhaustiveOrderThreshold {
		return exhaustiveSearch(joins, operators, est, vars)
	}
	return hillClimbSearch(joins, operators, est, vars, cfg)
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func orderCost(joins []JoinSpec, operators []op.Operator, est CardinalityEstimator, vars map[string]NodeSpec, order []int) float64 {
	root, err := buildGreedyPlan(vars, joins, operators, order, est)
	if err != nil || root == nil {
		return math.Inf(1)
	}
	return root.Cost
}

func exhaustiveSearch(joins []JoinSpec, operators []op.Operator, est CardinalityEstimator, vars map[string]NodeSpec) []int {
	n := len(joins)
	best := identityOrder(n)
	bestCost := orderCost(joins, operators, est, vars, best)

	perm := identityOrder(n)
	permute(perm, 0, func(candidate []int) {
		cost := orderCost(joins, operators, est, vars, candidate)
		if cost < bestCost {
			bestCost = cost
			best = append([]int(nil), candidate...)
		}
	})
	return best
}

// permute calls visit with every permutation of perm[k:] fixed at
// positions [0,k), by recursive in-place swapping, restoring perm on return.
func permute(perm []int, k int, visit func([]int)) {
	if k == len(perm)-1 {
		visit(perm)
		return
	}
	for i := k; i < len(perm); i++ {
		perm[k], perm[i] = perm[i], perm[k]
		permute(perm, k+1, visit)
		perm[k], perm[i] = perm[i], perm[k]
	}
}

func hillClimbSearch(joins []JoinSpec, operators []op.Operator, est CardinalityEstimator, vars map[string]NodeSpec, cfg config.PlannerConfig) []int {
	n := len(joins)
	current := identityOrder(n)
	currentCost := orderCost(joins, operators, est, vars, current)

	maxRejections := cfg.HillClimbRejectFactor * n
	if maxRejections <= 0 {
		maxRejections = n
	}
	offspring := cfg.HillClimbOffspring
	if offspring <= 0 {
		offspring = 1
	}

	rejections := 0
	for rejections < maxRejections {
		bestCandidate := current
		bestCost := currentCost
		for o := 0; o < offspring; o++ {
			candidate := append([]int(nil), current...)
			i, j := planRand.Intn(n), planRand.Intn(n)
			candidate[i], candidate[j] = candidate[j], candidate[i]
			if cost := orderCost(joins, operators, est, vars, candidate); cost < bestCost {
				bestCandidate, bestCost = candidate, cost
			}
		}
		if bestCost < currentCost {
			current, currentCost = bestCandidate, bestCost
			rejections = 0
		} else {
			rejections++
		}
	}
	return current
}
