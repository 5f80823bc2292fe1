package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/sphfluid/config"
)

func TestBuild(t *testing.T) {
	base := config.Default().Scene
	tests := []struct {
		kind     string
		minX     float64
		maxX     float64
		minY     float64
		maxY     float64
		particle int
	}{
		{config.SceneDamBreak, 0, base.Width, 0, base.Height, 1500},
		{config.SceneBlock, (1 - base.Width) / 2, (1 + base.Width) / 2, (1 - base.Height) / 2, (1 + base.Height) / 2, 1000},
		{config.SceneRandom, 0, base.Width, 0, base.Height, 777},
		{config.SceneDamBreak, 0, base.Width, 0, base.Height, 1},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := base
			cfg.Kind = tt.kind
			st, err := Build(cfg, tt.particle)
			require.NoError(t, err)
			require.Equal(t, tt.particle, st.Len())
			require.NoError(t, st.Validate())

			for i, p := range st.Position {
				assert.True(t, p.X >= tt.minX && p.X <= tt.maxX, "particle %d x=%g", i, p.X)
				assert.True(t, p.Y >= tt.minY && p.Y <= tt.maxY, "particle %d y=%g", i, p.Y)
				assert.Equal(t, cfg.Mass, st.Mass[i])
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	cfg := config.Default().Scene
	a, err := Build(cfg, 300)
	require.NoError(t, err)
	b, err := Build(cfg, 300)
	require.NoError(t, err)
	assert.Equal(t, a.Position, b.Position)

	cfg.Seed++
	c, err := Build(cfg, 300)
	require.NoError(t, err)
	assert.NotEqual(t, a.Position, c.Position)
}

func TestBuildRejects(t *testing.T) {
	cfg := config.Default().Scene
	_, err := Build(cfg, 0)
	assert.Error(t, err)

	cfg.Kind = "vortex"
	_, err = Build(cfg, 10)
	assert.Error(t, err)
}
