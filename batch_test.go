package kin_arm

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveAll(t *testing.T) {
	s := newTestSolver(t, DefaultArmConfig(), SolverConfig{})

	goals := []Goal{
		{Position: r3.Vector{X: 0.25, Y: 0.25, Z: 0}},
		{Position: r3.Vector{X: 100, Y: 100, Z: 100}},
		{Position: r3.Vector{X: 0.3, Y: 0, Z: 0.1}},
		{Position: r3.Vector{X: 0, Y: s.Arm().MaxReach(), Z: 0}},
	}

	t.Run("results keep input order", func(t *testing.T) {
		results := s.SolveAll(context.Background(), goals, 3)
		require.Len(t, results, len(goals))

		for i, res := range results {
			assert.Equal(t, goals[i].Position, res.Goal.Position)

			single, err := s.SolveDetailed(goals[i])
			if err != nil {
				assert.Equal(t, err.Error(), res.Err.Error())
				assert.Nil(t, res.Solution)
				continue
			}
			require.NoError(t, res.Err)
			assert.Equal(t, single.Pose.Angles(), res.Solution.Pose.Angles())
		}
		assert.True(t, errors.Is(results[1].Err, ErrUnreachableTarget))
	})

	t.Run("more workers than goals", func(t *testing.T) {
		results := s.SolveAll(context.Background(), goals[:1], 16)
		require.Len(t, results, 1)
		assert.NoError(t, results[0].Err)
	})

	t.Run("no goals", func(t *testing.T) {
		assert.Empty(t, s.SolveAll(context.Background(), nil, 4))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := s.SolveAll(ctx, goals, 2)
		require.Len(t, results, len(goals))
		for i, res := range results {
			assert.Equal(t, goals[i].Position, res.Goal.Position)
			assert.True(t, errors.Is(res.Err, context.Canceled))
			assert.Nil(t, res.Solution)
		}
	})
}
