package sim

import (
	"github.com/annel0/sand-engine/internal/worker"
)

// ChunkScheduler раскладывает обновление чанков на четыре фазы по четности
// координат чанка. Внутри фазы конкурирующие чанки не соседствуют, поэтому
// запись клетки (x±1, y+1) никогда не пересекает границу к одновременно
// обновляемому чанку.
type ChunkScheduler struct {
	pool  *worker.Pool
	rules Rules
	seed  int64
}

// NewChunkScheduler создает планировщик с указанными правилами
func NewChunkScheduler(pool *worker.Pool, rules Rules, seed int64) *ChunkScheduler {
	return &ChunkScheduler{pool: pool, rules: rules, seed: seed}
}

// SetRules заменяет правила движения (тюнинг воды на лету)
func (s *ChunkScheduler) SetRules(rules Rules) {
	s.rules = rules
}

// Step выполняет один полный проход правил по всем чанкам.
// Направления обхода чанков меняются от шага к шагу, чтобы не накапливать
// направленное смещение порядка обработки.
func (s *ChunkScheduler) Step(g *Grid, stepCount uint64) {
	g.ClearUpdated()

	flipY := stepCount&1 != 0
	flipX := stepCount&2 != 0

	for phaseY := 0; phaseY < 2; phaseY++ {
		for phaseX := 0; phaseX < 2; phaseX++ {
			s.runPhase(g, stepCount, phaseX, phaseY, flipX, flipY)
			s.pool.WaitAll()
		}
	}
}

// runPhase отправляет в пул все чанки с четностью (phaseX, phaseY)
func (s *ChunkScheduler) runPhase(g *Grid, stepCount uint64, phaseX, phaseY int, flipX, flipY bool) {
	ys := chunkOrder(g.ChunksY(), phaseY, flipY)
	xs := chunkOrder(g.ChunksX(), phaseX, flipX)

	for _, cy := range ys {
		for _, cx := range xs {
			cx, cy := cx, cy
			s.pool.Submit(func() {
				rng := NewChunkRNG(s.seed, stepCount, cx, cy)
				s.updateChunk(g, cx, cy, rng)
			})
		}
	}
}

// chunkOrder возвращает индексы чанков данной четности в прямом или
// обратном порядке
func chunkOrder(n, parity int, flip bool) []int {
	order := make([]int, 0, (n+1)/2)
	for c := parity; c < n; c += 2 {
		order = append(order, c)
	}
	if flip {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	return order
}

// updateChunk применяет правила ко всем клеткам чанка снизу вверх.
// Направление обхода по X выбирается случайно на чанк; клетка, уже
// двигавшаяся на этом шаге, и клетки rigid body пропускаются.
func (s *ChunkScheduler) updateChunk(g *Grid, cx, cy int, rng *RNG) {
	x0 := cx * g.ChunkW()
	y0 := cy * g.ChunkH()

	leftToRight := rng.Bool()

	for j := g.ChunkH() - 1; j >= 0; j-- {
		y := y0 + j
		for i := 0; i < g.ChunkW(); i++ {
			x := x0 + i
			if !leftToRight {
				x = x0 + g.ChunkW() - 1 - i
			}

			if g.IsUpdated(x, y) {
				continue
			}
			cell := g.cells[g.idx(x, y)]
			if cell.BodyID != 0 || !cell.ID.Movable() {
				continue
			}

			s.rules.UpdateCell(g, x, y, rng)
		}
	}
}
