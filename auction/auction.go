// Package auction implements a Bertsekas-style auction algorithm for
// near-optimal bipartite assignment, used by the document re-rendering
// subsystem to match edited list elements against their prior versions
// (spec §4.7).
package auction

import "math"

// Options configures the matcher. Epsilon bounds how far from optimal the
// total assigned score may be (within m*epsilon); Threshold rejects any
// assignment whose net value (score minus price) falls below it.
type Options struct {
	Epsilon   float64
	Threshold float64
}

// DefaultOptions returns the spec's default epsilon (0.01) and threshold
// (0).
func DefaultOptions() Options {
	return Options{Epsilon: 0.01, Threshold: 0}
}

// Result is the outcome of a Match call.
type Result struct {
	// Assignment maps bidder index to assigned item index. A bidder absent
	// from the map is unassigned.
	Assignment map[int]int
	// UnassignedBidders lists bidder indices with no assigned item,
	// ascending.
	UnassignedBidders []int
	// UnassignedItems lists item indices with no assigned bidder, ascending.
	UnassignedItems []int
}

// Match runs the auction over scores[bidder][item] and returns a
// near-optimal assignment (spec §4.7). Rectangular matrices are handled:
// when bidders outnumber items (or items outnumber bidders) the surplus is
// left unassigned, and the unassigned bidders/items are listed in Result.
func Match(scores [][]float64, opts Options) Result {
	m := len(scores)
	if m == 0 {
		return Result{Assignment: map[int]int{}}
	}
	n := len(scores[0])
	if n == 0 {
		unassigned := make([]int, m)
		for i := range unassigned {
			unassigned[i] = i
		}
		return Result{Assignment: map[int]int{}, UnassignedBidders: unassigned}
	}

	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultOptions().Epsilon
	}

	prices := make([]float64, n)
	owner := make([]int, n)
	for j := range owner {
		owner[j] = -1
	}
	assignment := make([]int, m)
	for i := range assignment {
		assignment[i] = -1
	}
	permanentlyUnassigned := make([]bool, m)

	for {
		bidder := nextUnassigned(assignment, permanentlyUnassigned)
		if bidder < 0 {
			break
		}

		best, bestValue, secondValue := bestItems(scores[bidder], prices, opts.Threshold)
		if bestValue < opts.Threshold {
			permanentlyUnassigned[bidder] = true
			continue
		}

		if prevOwner := owner[best]; prevOwner >= 0 {
			assignment[prevOwner] = -1
		}
		assignment[bidder] = best
		owner[best] = bidder
		prices[best] += (bestValue - secondValue) + opts.Epsilon
	}

	return buildResult(assignment, n)
}

func nextUnassigned(assignment []int, permanentlyUnassigned []bool) int {
	for i, a := range assignment {
		if a < 0 && !permanentlyUnassigned[i] {
			return i
		}
	}
	return -1
}

// bestItems finds, for one bidder's row, the highest and second-highest
// net value (score - price), breaking ties by lowest item index. When only
// one item exists there is no second-best; it is clamped to threshold so
// the price rise degenerates to (best - threshold) + epsilon rather than
// diverging to +inf (spec §4.7, "second-best ... clamped to threshold").
func bestItems(row, prices []float64, threshold float64) (best int, bestValue, secondValue float64) {
	bestValue = math.Inf(-1)
	secondValue = math.Inf(-1)
	best = 0
	for j, score := range row {
		value := score - prices[j]
		switch {
		case value > bestValue:
			secondValue = bestValue
			bestValue = value
			best = j
		case value > secondValue:
			secondValue = value
		}
	}
	if math.IsInf(secondValue, -1) {
		secondValue = threshold
	}
	return best, bestValue, secondValue
}

func buildResult(assignment []int, n int) Result {
	result := Result{Assignment: map[int]int{}}
	itemTaken := make([]bool, n)
	for bidder, item := range assignment {
		if item >= 0 {
			result.Assignment[bidder] = item
			itemTaken[item] = true
		} else {
			result.UnassignedBidders = append(result.UnassignedBidders, bidder)
		}
	}
	for j, taken := range itemTaken {
		if !taken {
			result.UnassignedItems = append(result.UnassignedItems, j)
		}
	}
	return result
}
