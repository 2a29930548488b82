package auction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/binder/binder/auction"
)

func TestMatchDiagonalIsOptimal(t *testing.T) {
	t.Parallel()
	scores := [][]float64{
		{10, 1, 1},
		{1, 10, 1},
		{1, 1, 10},
	}
	result := auction.Match(scores, auction.DefaultOptions())
	assert.Equal(t, 0, result.Assignment[0])
	assert.Equal(t, 1, result.Assignment[1])
	assert.Equal(t, 2, result.Assignment[2])
	assert.Empty(t, result.UnassignedBidders)
	assert.Empty(t, result.UnassignedItems)
}

func TestMatchEmptyBidders(t *testing.T) {
	t.Parallel()
	result := auction.Match(nil, auction.DefaultOptions())
	assert.Empty(t, result.Assignment)
}

func TestMatchEmptyItems(t *testing.T) {
	t.Parallel()
	result := auction.Match([][]float64{{}, {}}, auction.DefaultOptions())
	assert.Empty(t, result.Assignment)
	assert.Equal(t, []int{0, 1}, result.UnassignedBidders)
}

func TestMatchSingleItemClampsSecondBest(t *testing.T) {
	t.Parallel()
	scores := [][]float64{{5}}
	result := auction.Match(scores, auction.Options{Epsilon: 0.01, Threshold: 1})
	assert.Equal(t, 0, result.Assignment[0])
}

func TestMatchRejectsBelowThreshold(t *testing.T) {
	t.Parallel()
	scores := [][]float64{{-5}}
	result := auction.Match(scores, auction.Options{Epsilon: 0.01, Threshold: 0})
	assert.Empty(t, result.Assignment)
	assert.Equal(t, []int{0}, result.UnassignedBidders)
}

func TestMatchRectangularMoreItemsThanBidders(t *testing.T) {
	t.Parallel()
	scores := [][]float64{
		{5, 1, 1},
	}
	result := auction.Match(scores, auction.DefaultOptions())
	assert.Equal(t, 0, result.Assignment[0])
	assert.ElementsMatch(t, []int{1, 2}, result.UnassignedItems)
}
