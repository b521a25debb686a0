package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftPriority(t *testing.T) {
	p, err := ShiftPriority(PriorityNormal, DirectionUp)
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	p, err = ShiftPriority(PriorityNormal, DirectionDown)
	require.NoError(t, err)
	assert.Equal(t, PriorityLow, p)

	p, err = ShiftPriority(PriorityUrgent, DirectionUp)
	assert.True(t, errors.Is(err, ErrPriorityBounds))
	assert.Equal(t, PriorityUrgent, p)

	p, err = ShiftPriority(PriorityLow, DirectionDown)
	assert.True(t, errors.Is(err, ErrPriorityBounds))
	assert.Equal(t, PriorityLow, p)

	_, err = ShiftPriority("CRITICAL", DirectionUp)
	assert.True(t, errors.Is(err, ErrInvalidPriority))

	_, err = ShiftPriority(PriorityLow, "sideways")
	assert.Error(t, err)
}

func TestShiftPriorityStaysInBounds(t *testing.T) {
	for _, start := range Priorities {
		for _, dir := range []string{DirectionUp, DirectionDown} {
			p := start
			for i := 0; i < 10; i++ {
				next, err := ShiftPriority(p, dir)
				if err != nil {
					require.True(t, errors.Is(err, ErrPriorityBounds))
					break
				}
				p = next
			}
			assert.GreaterOrEqual(t, PriorityRank(p), 0)
		}
	}
}

func TestSwapNeighbour(t *testing.T) {
	list := []WaitlistEntry{{ID: 1}, {ID: 2}, {ID: 3}}
	idx, err := SwapNeighbour(list, 1, DirectionUp)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = SwapNeighbour(list, 1, DirectionDown)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = SwapNeighbour(list, 0, DirectionUp)
	assert.Error(t, err)
	_, err = SwapNeighbour(list, 2, DirectionDown)
	assert.Error(t, err)
}
