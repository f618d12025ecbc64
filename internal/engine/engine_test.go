package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/sand-engine/internal/config"
	"github.com/annel0/sand-engine/internal/sim"
)

func testConfig(workers int) *config.Config {
	cfg := config.Default()
	cfg.World.ChunksX = 2
	cfg.World.ChunksY = 2
	cfg.World.Seed = 42
	cfg.Workers.Count = workers
	return cfg
}

func newTestEngine(t *testing.T, workers int) *Engine {
	t.Helper()
	eng, err := New(testConfig(workers))
	require.NoError(t, err)
	return eng
}

func TestEngineStepCountsAndStats(t *testing.T) {
	eng := newTestEngine(t, 1)

	eng.PaintDisc(64, 30, 5, sim.Sand)
	for i := 0; i < 10; i++ {
		eng.Step()
	}

	stats := eng.Stats()
	assert.Equal(t, uint64(10), stats.StepCount)
	assert.NotEmpty(t, stats.WorldID)
	assert.GreaterOrEqual(t, stats.ChainCount, 1, "каменная граница мира дает хотя бы одну цепочку")
	assert.GreaterOrEqual(t, stats.TerrainShapes, 1)
}

func TestEnginePaintConservesAndReset(t *testing.T) {
	eng := newTestEngine(t, 1)

	eng.PaintDisc(64, 40, 4, sim.Sand)
	var sand int
	eng.WithGrid(func(g *sim.Grid) { sand = g.CountMaterial(sim.Sand) })
	assert.Greater(t, sand, 0)

	// Обратная закраска воздухом стирает диск
	eng.PaintDisc(64, 40, 4, sim.Air)
	eng.WithGrid(func(g *sim.Grid) { sand = g.CountMaterial(sim.Sand) })
	assert.Equal(t, 0, sand)

	eng.PaintDisc(64, 40, 4, sim.Water)
	eng.Reset()

	eng.WithGrid(func(g *sim.Grid) {
		assert.Equal(t, 0, g.CountMaterial(sim.Water), "после Reset мир пуст")
		assert.Equal(t, sim.Stone, g.Get(0, 0).ID, "граница после Reset на месте")
	})
	assert.Equal(t, 0, eng.Stats().DynamicBodies)
}

func TestEngineBoxThroughSand(t *testing.T) {
	eng := newTestEngine(t, 1)

	// Песок 60x60 пикселей вокруг центра мира
	eng.WithGrid(func(g *sim.Grid) {
		for y := 34; y <= 93; y++ {
			for x := 34; x <= 93; x++ {
				g.SetCell(x, y, sim.Sand)
			}
		}
	})

	// Ящик 1x1 м прямо в толще песка
	id, err := eng.SpawnBox(2.0, 2.0, 1.0, 1.0, sim.Wood)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), id)

	eng.Step()

	stats := eng.Stats()
	assert.Equal(t, 1, stats.DynamicBodies)

	// Первый шаг вытесняет весь песок из формы тела (32x32 пикселя)
	assert.InDelta(t, 1024, stats.Debris, 80, "вытесненный песок становится обломками")

	var wood int
	eng.WithGrid(func(g *sim.Grid) { wood = g.CountMaterial(sim.Wood) })
	assert.InDelta(t, 1024, wood, 80, "пиксели тела проштампованы деревом")

	// Обломки рождаются над верхней гранью тела
	boxTop := 2.0 - 0.5
	for _, pts := range eng.DebrisPositions() {
		for _, p := range pts {
			assert.Less(t, p.Y, boxTop+0.1, "обломки должны вылетать сверху тела")
		}
	}
}

func TestEngineBodyIDExhaustionSurfacesError(t *testing.T) {
	eng := newTestEngine(t, 1)

	for i := 0; i < 255; i++ {
		_, err := eng.SpawnBox(2.0, 2.0, 0.2, 0.2, sim.Wood)
		require.NoError(t, err)
	}

	_, err := eng.SpawnBox(2.0, 2.0, 0.2, 0.2, sim.Wood)
	assert.Error(t, err)

	// Reset освобождает пространство идентификаторов
	eng.Reset()
	_, err = eng.SpawnBox(2.0, 2.0, 0.2, 0.2, sim.Wood)
	assert.NoError(t, err)
}

func TestEngineSnapshotMatchesGrid(t *testing.T) {
	eng := newTestEngine(t, 2)

	eng.PaintDisc(70, 70, 6, sim.Water)

	var w, h int
	eng.WithGrid(func(g *sim.Grid) { w, h = g.Width(), g.Height() })

	buf := make([]uint8, w*h)
	eng.Snapshot(buf)

	var direct []uint8
	eng.WithGrid(func(g *sim.Grid) {
		direct = make([]uint8, w*h)
		g.CopyMaterials(direct)
	})

	assert.Equal(t, direct, buf, "параллельный снапшот должен совпадать с прямым копированием")
}

func TestEngineDeterministicReplay(t *testing.T) {
	run := func() []uint8 {
		eng := newTestEngine(t, 1)

		eng.PaintDisc(50, 20, 6, sim.Sand)
		eng.PaintDisc(80, 20, 6, sim.Water)
		for i := 0; i < 60; i++ {
			eng.Step()
		}

		var buf []uint8
		eng.WithGrid(func(g *sim.Grid) {
			buf = make([]uint8, g.Width()*g.Height())
			g.CopyMaterials(buf)
		})
		return buf
	}

	assert.Equal(t, run(), run(), "одинаковые прогоны с одним сидом должны совпадать побитово")
}

func TestEngineFixedStepsGate(t *testing.T) {
	eng := newTestEngine(t, 1)

	eng.SetFixedStepsMode(true)
	eng.Start()
	defer eng.Stop()

	// Без бюджета шаги не идут
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(0), eng.Stats().StepCount)

	eng.RequestSteps(5)
	require.Eventually(t, func() bool {
		return eng.Stats().StepCount == 5
	}, 2*time.Second, 5*time.Millisecond, "затвор должен выпустить ровно 5 шагов")

	// Бюджет исчерпан: счетчик стоит
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(5), eng.Stats().StepCount)

	eng.RequestSteps(3)
	require.Eventually(t, func() bool {
		return eng.Stats().StepCount == 8
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEngineFreeRunAndStop(t *testing.T) {
	eng := newTestEngine(t, 1)

	eng.Start()
	require.Eventually(t, func() bool {
		return eng.Stats().StepCount > 3
	}, 5*time.Second, 5*time.Millisecond, "в свободном режиме шаги должны идти сами")

	eng.Stop()
	after := eng.Stats().StepCount

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, eng.Stats().StepCount, "после Stop шаги не идут")
}

func TestEngineTickFrameSlowMode(t *testing.T) {
	eng := newTestEngine(t, 1)

	eng.SetFixedStepsMode(true)
	eng.RequestSteps(-3) // один шаг каждые 3 кадра
	eng.Start()
	defer eng.Stop()

	for frame := 0; frame < 9; frame++ {
		eng.TickFrame()
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return eng.Stats().StepCount == 3
	}, time.Second, 5*time.Millisecond, "9 кадров при rate=-3 дают 3 шага")
}

func TestEngineBenchmarkRunsToCompletion(t *testing.T) {
	eng := newTestEngine(t, 1)
	eng.EnableBenchmark(20)

	eng.Start()
	defer eng.Stop()

	select {
	case <-eng.BenchmarkDone():
	case <-time.After(10 * time.Second):
		t.Fatal("Бенчмарк должен завершиться")
	}

	var nonAir int
	eng.WithGrid(func(g *sim.Grid) { nonAir = g.NonAirCount() })
	borderCells := 0
	eng.WithGrid(func(g *sim.Grid) {
		borderCells = 2*g.Width() + 2*g.Height() - 4
	})
	assert.Greater(t, nonAir, borderCells, "спаунеры бенчмарка должны оставить частицы")
}
