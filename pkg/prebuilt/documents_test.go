package prebuilt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsim/flowsim/pkg/flowsim"
)

func TestRecyclePlant(t *testing.T) {
	rt, err := flowsim.New(RecyclePlant())
	require.NoError(t, err)

	t.Run("recycles collapse into one loop stage", func(t *testing.T) {
		p := rt.Plan()
		assert.Equal(t, 1, p.LoopCount())

		var loop *flowsim.Stage
		for i := range p.Stages {
			if p.Stages[i].Kind == flowsim.StageLoop {
				loop = &p.Stages[i]
			}
		}
		require.NotNil(t, loop)
		assert.Contains(t, loop.Nodes, "feed_mix")
		assert.Contains(t, loop.Nodes, "recycle_split")
		assert.Contains(t, loop.Nodes, "clarifier")
		assert.NotEmpty(t, loop.TearEdges)
	})

	t.Run("converges and balances flow", func(t *testing.T) {
		results, err := rt.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, results.StepCount())

		effluent := results.Last("e_effluent")
		require.NotNil(t, effluent)
		// At steady recycle flows the effluent carries the influent flow.
		assert.InDelta(t, 18446, effluent[14], 1e-3)

		sludge := results.Last("e_return_sludge")
		require.NotNil(t, sludge)
		assert.InDelta(t, 18446, sludge[14], 1e-3)
	})
}

func TestContractionLoop(t *testing.T) {
	rt, err := flowsim.New(ContractionLoop())
	require.NoError(t, err)

	require.Equal(t, 1, rt.Plan().LoopCount())

	results, err := rt.Run(context.Background())
	require.NoError(t, err)

	forward := results.Last("e_forward")
	require.NotNil(t, forward)
	assert.InDelta(t, 2, forward[0], 1e-5)
	assert.InDelta(t, 2, forward[1], 1e-5)
}
