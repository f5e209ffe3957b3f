package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func box(axis Axis, x, z, w, d float64) Box {
	return Box{Position: Vec3{X: x, Z: z}, Width: w, Depth: d, Axis: axis}
}

func TestCutLayer_PartialOverlapOnX(t *testing.T) {
	base := box(AxisZ, 0, 0, 4.5, 4.5)
	top := box(AxisX, 2.0, 0, 4.5, 4.5)

	cut, ok := CutLayer(top, base, DefaultTolerance())
	require.True(t, ok, "overlap 2.5 should be a hit")

	assert.InDelta(t, 2.0, cut.Delta, eps)
	assert.InDelta(t, 2.0, cut.Diff, eps)
	assert.InDelta(t, 2.5, cut.Overlap, eps)
	assert.InDelta(t, 2.5, cut.Layer.Width, eps)
	assert.InDelta(t, 4.5, cut.Layer.Depth, eps, "cross-axis size is untouched")
	assert.InDelta(t, 1.0, cut.Layer.Position.X, eps, "centre shifts by -delta/2")
	assert.False(t, cut.Perfect)

	require.True(t, cut.HasDebris)
	assert.InDelta(t, 2.0, cut.Debris.Width, eps)
	assert.InDelta(t, 4.5, cut.Debris.Depth, eps)
	assert.InDelta(t, 3.25, cut.Debris.Position.X, eps)
}

func TestCutLayer_NegativeDelta(t *testing.T) {
	base := box(AxisZ, 0, 0, 4.5, 4.5)
	top := box(AxisX, -1.0, 0, 4.5, 4.5)

	cut, ok := CutLayer(top, base, DefaultTolerance())
	require.True(t, ok)

	assert.InDelta(t, 3.5, cut.Layer.Width, eps)
	assert.InDelta(t, -0.5, cut.Layer.Position.X, eps)
	require.True(t, cut.HasDebris)
	assert.InDelta(t, 1.0, cut.Debris.Width, eps)
	assert.InDelta(t, -2.75, cut.Debris.Position.X, eps)
}

func TestCutLayer_AlongZ(t *testing.T) {
	base := box(AxisX, 0.5, 0, 3, 3)
	top := box(AxisZ, 0.5, 1.2, 3, 3)

	cut, ok := CutLayer(top, base, DefaultTolerance())
	require.True(t, ok)

	assert.InDelta(t, 3.0, cut.Layer.Width, eps)
	assert.InDelta(t, 1.8, cut.Layer.Depth, eps)
	assert.InDelta(t, 0.6, cut.Layer.Position.Z, eps)
	assert.InDelta(t, 0.5, cut.Layer.Position.X, eps, "off-axis coordinate is preserved")
	require.True(t, cut.HasDebris)
	assert.InDelta(t, 1.2, cut.Debris.Depth, eps)
	assert.InDelta(t, 3.0, cut.Debris.Width, eps)
}

func TestCutLayer_Miss(t *testing.T) {
	base := box(AxisZ, 0, 0, 4.5, 4.5)
	top := box(AxisX, 4.6, 0, 4.5, 4.5)

	cut, ok := CutLayer(top, base, DefaultTolerance())
	assert.False(t, ok)
	assert.InDelta(t, -0.1, cut.Overlap, eps)
	assert.False(t, cut.HasDebris)
}

func TestCutLayer_ExactZeroOverlapIsMiss(t *testing.T) {
	base := box(AxisZ, 0, 0, 4.5, 4.5)
	top := box(AxisX, -4.5, 0, 4.5, 4.5)

	_, ok := CutLayer(top, base, DefaultTolerance())
	assert.False(t, ok, "overlap of exactly zero must not continue")
}

func TestCutLayer_PerfectPlacementSkipsTinyDebris(t *testing.T) {
	base := box(AxisZ, 0, 0, 3, 3)
	top := box(AxisX, 0.02, 0, 3, 3)

	cut, ok := CutLayer(top, base, DefaultTolerance())
	require.True(t, ok)

	assert.True(t, cut.Perfect)
	assert.False(t, cut.HasDebris, "debris thinner than epsilon is not spawned")
	assert.InDelta(t, 2.98, cut.Layer.Width, eps, "perfect placements are still cut, never snapped")
}

func TestCutLayer_PerfectionBoundary(t *testing.T) {
	base := box(AxisZ, 0, 0, 3, 3)

	cut, ok := CutLayer(box(AxisX, 0.1, 0, 3, 3), base, DefaultTolerance())
	require.True(t, ok)
	assert.False(t, cut.Perfect, "tolerance is strict")

	cut, ok = CutLayer(box(AxisX, 0.0999, 0, 3, 3), base, DefaultTolerance())
	require.True(t, ok)
	assert.True(t, cut.Perfect)
}

func TestCutLayer_AreaNeverGrows(t *testing.T) {
	base := box(AxisZ, 0, 0, 4.5, 4.5)

	for i := -44; i <= 44; i++ {
		delta := float64(i) / 10
		top := box(AxisX, delta, 0, 4.5, 4.5)

		cut, ok := CutLayer(top, base, DefaultTolerance())
		require.True(t, ok, "delta %.1f should overlap", delta)

		if delta == 0 {
			assert.InDelta(t, top.Area(), cut.Layer.Area(), eps)
			continue
		}
		assert.Less(t, cut.Layer.Area(), top.Area(), "delta %.1f", delta)
	}
}

func TestNextLayer(t *testing.T) {
	placed := Box{Position: Vec3{X: 1.0, Y: 0.8, Z: 0}, Width: 2.5, Depth: 4.5, Axis: AxisX}

	next := NextLayer(placed, -12)

	assert.Equal(t, AxisZ, next.Axis)
	assert.InDelta(t, 1.0, next.Position.X, eps)
	assert.InDelta(t, -12.0, next.Position.Z, eps)
	assert.InDelta(t, 2.5, next.Width, eps)
	assert.InDelta(t, 4.5, next.Depth, eps)

	again := NextLayer(next, -8)
	assert.Equal(t, AxisX, again.Axis)
	assert.InDelta(t, -8.0, again.Position.X, eps)
	assert.InDelta(t, -12.0, again.Position.Z, eps)
}

func TestAxis(t *testing.T) {
	assert.Equal(t, AxisZ, AxisX.Other())
	assert.Equal(t, AxisX, AxisZ.Other())
	assert.True(t, AxisX.Valid())
	assert.False(t, Axis("y").Valid())
}
