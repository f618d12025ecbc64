package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sand-engine/internal/vec"
)

func TestBoxFallsUnderGravity(t *testing.T) {
	w := NewWorld(10.0)

	box := w.CreateBox(2.0, 1.0, 1.0, 1.0)
	require.True(t, box.Valid())

	start := box.Position()
	for i := 0; i < 60; i++ {
		w.Step(1.0 / 60.0)
	}
	end := box.Position()

	assert.Greater(t, end.Y, start.Y+1.0, "за секунду падения ящик должен сместиться вниз больше чем на метр")
}

func TestBoxRestsOnTerrainSegment(t *testing.T) {
	w := NewWorld(10.0)

	// Горизонтальный пол на y=3
	floor := []vec.Vec2Float{{X: 0, Y: 3}, {X: 10, Y: 3}}
	w.UpdateTerrainMesh([][]vec.Vec2Float{floor})
	assert.Equal(t, 1, w.TerrainShapeCount())

	box := w.CreateBox(5.0, 1.0, 1.0, 1.0)
	for i := 0; i < 300; i++ {
		w.Step(1.0 / 60.0)
	}

	pos := box.Position()
	assert.InDelta(t, 2.5, pos.Y, 0.1, "ящик должен лечь на пол (центр на полметра выше пола)")
}

func TestUpdateTerrainMeshReplacesShapes(t *testing.T) {
	w := NewWorld(10.0)

	w.UpdateTerrainMesh([][]vec.Vec2Float{
		{{X: 0, Y: 3}, {X: 10, Y: 3}},
		{{X: 0, Y: 5}, {X: 10, Y: 5}},
	})
	assert.Equal(t, 2, w.TerrainShapeCount())

	// Повторная загрузка полностью заменяет набор форм
	w.UpdateTerrainMesh([][]vec.Vec2Float{
		{{X: 0, Y: 4}, {X: 10, Y: 4}},
	})
	assert.Equal(t, 1, w.TerrainShapeCount())

	w.UpdateTerrainMesh(nil)
	assert.Equal(t, 0, w.TerrainShapeCount())
}

func TestUpdateTerrainMeshChainKinds(t *testing.T) {
	w := NewWorld(10.0)

	closedSquare := []vec.Vec2Float{
		{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1},
	}
	openThree := []vec.Vec2Float{
		{X: 4, Y: 1}, {X: 5, Y: 1}, {X: 5, Y: 2},
	}
	pair := []vec.Vec2Float{
		{X: 7, Y: 1}, {X: 8, Y: 1},
	}

	w.UpdateTerrainMesh([][]vec.Vec2Float{closedSquare, openThree, pair})

	// петля (1) + два отрезка открытой тройки (2) + одиночный отрезок (1)
	assert.Equal(t, 4, w.TerrainShapeCount())
}

func TestTestPointOnRotatableBox(t *testing.T) {
	w := NewWorld(0.0)

	box := w.CreateBox(5.0, 5.0, 2.0, 1.0)

	assert.True(t, box.TestPoint(5.0, 5.0), "центр должен быть внутри")
	assert.True(t, box.TestPoint(5.9, 5.4))
	assert.False(t, box.TestPoint(5.0, 6.0), "точка вне полувысоты")
	assert.False(t, box.TestPoint(7.0, 5.0))
}

func TestBodyAABBCoversBox(t *testing.T) {
	w := NewWorld(0.0)

	box := w.CreateBox(3.0, 4.0, 1.0, 2.0)
	lower, upper := box.AABB(0.5, 1.0)

	assert.InDelta(t, 2.5, lower.X, 1e-6)
	assert.InDelta(t, 3.0, lower.Y, 1e-6)
	assert.InDelta(t, 3.5, upper.X, 1e-6)
	assert.InDelta(t, 5.0, upper.Y, 1e-6)
}

func TestDestroyBodyInvalidatesHandle(t *testing.T) {
	w := NewWorld(10.0)

	box := w.CreateBox(1.0, 1.0, 1.0, 1.0)
	assert.Equal(t, 1, w.DynamicBodyCount())

	w.DestroyBody(box)
	assert.False(t, box.Valid())
	assert.Equal(t, 0, w.DynamicBodyCount())

	// Операции над мертвым хендлом безопасны
	w.DestroyBody(box)
	assert.Equal(t, vec.Vec2Float{}, box.Position())
	assert.False(t, box.TestPoint(1.0, 1.0))
}

func TestDebrisCircleKeepsVelocity(t *testing.T) {
	w := NewWorld(0.0)

	d := w.CreateDebris(1.0, 1.0, 2.0, -1.0, 0.015)
	v := d.LinearVelocity()
	assert.InDelta(t, 2.0, v.X, 1e-6)
	assert.InDelta(t, -1.0, v.Y, 1e-6)

	w.Step(1.0 / 60.0)
	pos := d.Position()
	assert.Greater(t, pos.X, 1.0)
	assert.Less(t, pos.Y, 1.0)
}

func TestWorldReset(t *testing.T) {
	w := NewWorld(10.0)

	w.CreateBox(1.0, 1.0, 1.0, 1.0)
	w.UpdateTerrainMesh([][]vec.Vec2Float{{{X: 0, Y: 3}, {X: 10, Y: 3}}})

	w.Reset()
	assert.Equal(t, 0, w.DynamicBodyCount())
	assert.Equal(t, 0, w.TerrainShapeCount())
}
