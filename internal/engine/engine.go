package engine

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/sand-engine/internal/bridge"
	"github.com/annel0/sand-engine/internal/config"
	"github.com/annel0/sand-engine/internal/logging"
	"github.com/annel0/sand-engine/internal/mesh"
	"github.com/annel0/sand-engine/internal/physics"
	"github.com/annel0/sand-engine/internal/sim"
	"github.com/annel0/sand-engine/internal/vec"
	"github.com/annel0/sand-engine/internal/worker"
)

// Engine владеет миром частиц, физическим миром и мостом между ними.
// Симуляция идет в собственной горутине; хост обменивается с ней через
// один мьютекс (шаг целиком) и lock-free счетчики.
type Engine struct {
	cfg     *config.Config
	worldID string

	grid      *sim.Grid
	pool      *worker.Pool
	chunks    *sim.ChunkScheduler
	extractor *mesh.Extractor
	phys      *physics.World
	bridge    *bridge.RigidBridge
	debris    *bridge.DebrisPool

	// Замок обмена: шаг симуляции и все операции хоста над миром
	mu sync.Mutex

	// Шаговый затвор для fixed-steps режима
	stepMu         sync.Mutex
	stepCond       *sync.Cond
	stepsRemaining int
	rate           int // >0: шагов за кадр; <0: один шаг в |rate| кадров
	frameCounter   int

	running    atomic.Bool
	fixedSteps atomic.Bool

	counters counters

	// Бенчмарк: скриптованные спаунеры вокруг центра мира
	benchmarkIterations uint64
	benchmarkIter       uint64
	benchmarkOnce       sync.Once
	benchmarkDone       chan struct{}

	loopDone chan struct{}
}

// New создает движок по конфигурации. Мир стартует пустым (воздух
// внутри каменной границы), все чанки грязные.
func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ppm := cfg.Physics.PixelsPerMeter
	pool := worker.NewPool(cfg.Workers.Count)
	grid := sim.NewGrid(cfg.World.ChunksX, cfg.World.ChunksY, cfg.World.ChunkSize)

	rules := sim.Rules{
		WaterMaxDist: cfg.Water.MaxDist,
		WaterFalloff: cfg.Water.SpreadFalloff,
	}

	phys := physics.NewWorld(cfg.Physics.GravityY)

	e := &Engine{
		cfg:           cfg,
		worldID:       uuid.NewString(),
		grid:          grid,
		pool:          pool,
		chunks:        sim.NewChunkScheduler(pool, rules, cfg.World.Seed),
		extractor:     mesh.NewExtractor(cfg.World.ChunksX, cfg.World.ChunksY, ppm, cfg.Mesh.SimplificationEpsilon, pool),
		phys:          phys,
		bridge:        bridge.NewRigidBridge(ppm),
		debris:        bridge.NewDebrisPool(phys, ppm, cfg.Debris, cfg.World.Seed),
		benchmarkDone: make(chan struct{}),
		loopDone:      make(chan struct{}),
	}
	e.stepCond = sync.NewCond(&e.stepMu)

	logging.LogInfo("Мир %s: %dx%d клеток (%dx%d чанков), воркеров: %d",
		e.worldID, grid.Width(), grid.Height(), cfg.World.ChunksX, cfg.World.ChunksY, pool.Size())

	return e, nil
}

// WorldID возвращает идентификатор мира
func (e *Engine) WorldID() string { return e.worldID }

// Grid возвращает сетку; прямой доступ допустим только когда симуляция
// не запущена (тесты, инициализация)
func (e *Engine) Grid() *sim.Grid { return e.grid }

// EnableBenchmark включает скриптованные спаунеры на n итераций
func (e *Engine) EnableBenchmark(n uint64) {
	e.benchmarkIterations = n
}

// BenchmarkDone закрывается по завершении бенчмарка
func (e *Engine) BenchmarkDone() <-chan struct{} {
	return e.benchmarkDone
}

// Start запускает горутину симуляции
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		logging.LogWarn("Start: симуляция уже запущена")
		return
	}
	go e.run()
}

// Stop кооперативно останавливает симуляцию: цикл дорабатывает текущий шаг.
// Затвор получает один шаг бюджета, чтобы проснуться из ожидания.
func (e *Engine) Stop() {
	if !e.running.Load() {
		return
	}
	e.running.Store(false)

	e.stepMu.Lock()
	e.stepsRemaining = 1
	e.stepMu.Unlock()
	e.stepCond.Broadcast()

	<-e.loopDone
	e.pool.Stop()
}

// run основной цикл потока симуляции
func (e *Engine) run() {
	defer close(e.loopDone)

	lastStepCount := e.counters.stepCount.Load()
	lastSPSUpdate := time.Now()

	for e.running.Load() {
		if e.fixedSteps.Load() {
			e.stepMu.Lock()
			for e.stepsRemaining <= 0 && e.running.Load() && e.fixedSteps.Load() {
				e.stepCond.Wait()
			}
			if !e.running.Load() {
				e.stepMu.Unlock()
				break
			}
			if e.fixedSteps.Load() {
				e.stepsRemaining--
			}
			e.stepMu.Unlock()
		}

		e.Step()

		now := time.Now()
		if elapsed := now.Sub(lastSPSUpdate); elapsed >= time.Second {
			steps := e.counters.stepCount.Load() - lastStepCount
			sps := float64(steps) / elapsed.Seconds()
			e.counters.spsBits.Store(math.Float64bits(sps))
			lastStepCount = e.counters.stepCount.Load()
			lastSPSUpdate = now
		}
	}
}

// Step выполняет один полный шаг симуляции: сетка террейна, правила клеток,
// извлечение тел, шаг физики, восстановление тел с выбросом обломков.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.benchmarkIterations > 0 {
		e.benchmarkIteration()
	}

	startMesh := time.Now()
	chains := e.extractor.Extract(e.grid)
	meshMs := time.Since(startMesh).Milliseconds()

	e.chunks.Step(e.grid, e.counters.stepCount.Load())

	e.bridge.ExtractAll(e.grid)

	startUpdate := time.Now()
	e.phys.UpdateTerrainMesh(chains)
	physicsMs := time.Since(startUpdate).Milliseconds()

	e.counters.dynamicBodies.Store(int64(e.phys.DynamicBodyCount()))
	e.counters.terrainShapes.Store(int64(e.phys.TerrainShapeCount()))

	e.phys.Step(e.cfg.Physics.Dt())

	e.bridge.Each(func(id uint8, info *bridge.BodyInfo) {
		if !info.Body.Valid() {
			return
		}

		displaced := e.bridge.RestoreBody(id, e.grid)
		if len(displaced) == 0 {
			return
		}

		topY := e.bridge.SpawnTopY(info)
		for _, d := range displaced {
			e.debris.Spawn(d.X, topY, d.Material)
		}
	})

	e.debris.Update(e.grid)

	e.counters.debris.Store(int64(e.debris.Count()))
	e.counters.chains.Store(int64(len(chains)))
	e.counters.meshMs.Store(meshMs)
	e.counters.physicsMs.Store(physicsMs)
	e.counters.stepCount.Add(1)
}

// benchmarkIteration рисует два орбитальных спаунера: вода по часовой,
// песок против. По исчерпании итераций закрывается BenchmarkDone.
func (e *Engine) benchmarkIteration() {
	iter := e.benchmarkIter
	e.benchmarkIter++

	if iter >= e.benchmarkIterations {
		e.benchmarkOnce.Do(func() {
			logging.LogInfo("Бенчмарк завершен: %d итераций", e.benchmarkIterations)
			close(e.benchmarkDone)
		})
		return
	}

	centerX := float64(e.grid.Width()) / 2.0
	centerY := float64(e.grid.Height()) / 2.0 * 0.3
	t := float64(iter) * 0.02

	waterX := int(centerX + math.Cos(t)*80.0)
	waterY := int(centerY + math.Sin(t)*40.0)
	e.paintSquare(waterX, waterY, 5, sim.Water)

	sandX := int(centerX + math.Cos(-t+math.Pi)*100.0)
	sandY := int(centerY + math.Sin(-t+math.Pi)*50.0)
	e.paintSquare(sandX, sandY, 5, sim.Sand)
}

func (e *Engine) paintSquare(cx, cy, half int, m sim.MaterialID) {
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			e.grid.SetCell(cx+dx, cy+dy, m)
		}
	}
}

// PaintDisc закрашивает диск радиусом radiusPx клеток; radius 0 - одна
// клетка. Выход за мир и граница игнорируются.
func (e *Engine) PaintDisc(xPx, yPx, radiusPx int, m sim.MaterialID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for dy := -radiusPx; dy <= radiusPx; dy++ {
		for dx := -radiusPx; dx <= radiusPx; dx++ {
			if dx*dx+dy*dy <= radiusPx*radiusPx {
				e.grid.SetCell(xPx+dx, yPx+dy, m)
			}
		}
	}
}

// SpawnBox создает динамический ящик в метрах и регистрирует его в мосте.
// Позиция зажимается внутрь мира. При исчерпании id тело уничтожается
// и возвращается ошибка.
func (e *Engine) SpawnBox(xM, yM, widthM, heightM float64, m sim.MaterialID) (uint8, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ppm := e.cfg.Physics.PixelsPerMeter
	maxW := float64(e.grid.Width()) / ppm
	maxH := float64(e.grid.Height()) / ppm

	halfW := widthM * 0.5
	halfH := heightM * 0.5
	xM = clamp(xM, halfW+0.1, maxW-halfW-0.1)
	yM = clamp(yM, halfH+0.1, maxH-halfH-0.1)

	body := e.phys.CreateBox(xM, yM, widthM, heightM)
	id, err := e.bridge.Register(body, widthM, heightM, m)
	if err != nil {
		e.phys.DestroyBody(body)
		return 0, err
	}

	logging.LogDebug("Ящик %d (%s) в (%.2f, %.2f) м", id, m, xM, yM)
	return id, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Reset уничтожает все тела и обломки, очищает мир и кеш сетки
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.grid.Clear()
	e.bridge.Clear()
	e.debris.Clear()
	e.phys.Reset()
	e.extractor.Clear()

	logging.LogInfo("Мир %s сброшен", e.worldID)
}

// SetFixedStepsMode переключает режим затвора шагов
func (e *Engine) SetFixedStepsMode(fixed bool) {
	e.fixedSteps.Store(fixed)
	e.stepCond.Broadcast()
}

// RequestSteps задает бюджет шагов: n > 0 - выполнить n шагов сейчас,
// n < 0 - один шаг каждые |n| вызовов TickFrame
func (e *Engine) RequestSteps(n int) {
	if n == 0 {
		n = 1
	}

	e.stepMu.Lock()
	e.rate = n
	if n > 0 {
		e.stepsRemaining = n
	}
	e.stepMu.Unlock()
	e.stepCond.Broadcast()
}

// TickFrame вызывается хостом раз в кадр отрисовки и подпитывает затвор
// согласно текущему rate
func (e *Engine) TickFrame() {
	if !e.fixedSteps.Load() {
		e.stepMu.Lock()
		e.frameCounter = 0
		e.stepMu.Unlock()
		return
	}

	e.stepMu.Lock()
	if e.rate > 0 {
		e.stepsRemaining = e.rate
	} else if e.rate < 0 {
		e.frameCounter++
		if e.frameCounter >= -e.rate {
			e.frameCounter = 0
			e.stepsRemaining = 1
		}
	}
	e.stepMu.Unlock()
	e.stepCond.Broadcast()
}

// WithGrid дает хосту доступ к сетке под замком обмена (только чтение)
func (e *Engine) WithGrid(fn func(g *sim.Grid)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.grid)
}

// Snapshot копирует материалы всех клеток в буфер кадра под замком обмена.
// Копирование распараллелено полосами по 32 строки.
func (e *Engine) Snapshot(buf []uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(buf) != e.grid.Width()*e.grid.Height() {
		logging.LogCritical("Snapshot: размер буфера %d != %d", len(buf), e.grid.Width()*e.grid.Height())
		return
	}

	const rowsPerTask = 32
	h := e.grid.Height()
	w := e.grid.Width()

	for y0 := 0; y0 < h; y0 += rowsPerTask {
		y0 := y0
		y1 := y0 + rowsPerTask
		if y1 > h {
			y1 = h
		}
		e.pool.Submit(func() {
			e.grid.CopyMaterialsRows(buf[y0*w:y1*w], y0, y1)
		})
	}
	e.pool.WaitAll()
}

// DebrisPositions возвращает позиции обломков по материалам для отрисовки
func (e *Engine) DebrisPositions() map[sim.MaterialID][]vec.Vec2Float {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.debris.Positions()
}

// Stats возвращает снапшот счетчиков без блокировок
func (e *Engine) Stats() Stats {
	return e.counters.snapshot(e.worldID)
}
