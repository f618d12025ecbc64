package mesh

import (
	"math"
	"sync"

	"github.com/annel0/sand-engine/internal/sim"
	"github.com/annel0/sand-engine/internal/vec"
	"github.com/annel0/sand-engine/internal/worker"
)

// Extractor строит коллизионную сетку террейна: для каждого грязного чанка
// обходит твердые клетки, собирает направленные отрезки вдоль границы
// твердое/нетвердое и сшивает их в полилинии. Результат кешируется по чанкам;
// чистые чанки переиспользуют прошлые цепочки.
type Extractor struct {
	ppm     float64
	epsilon float64
	pool    *worker.Pool

	chunksX, chunksY int

	mu    sync.Mutex
	cache []chunkChains
}

type chunkChains struct {
	chains    [][]vec.Vec2Float
	populated bool
}

// segment представляет направленный отрезок границы: твердая клетка справа
// по ходу направления
type segment struct {
	a, b vec.Vec2Float
}

// NewExtractor создает экстрактор для мира из chunksX*chunksY чанков
func NewExtractor(chunksX, chunksY int, ppm, epsilon float64, pool *worker.Pool) *Extractor {
	return &Extractor{
		ppm:     ppm,
		epsilon: epsilon,
		pool:    pool,
		chunksX: chunksX,
		chunksY: chunksY,
		cache:   make([]chunkChains, chunksX*chunksY),
	}
}

// Clear сбрасывает кеш (вызывается при reset мира)
func (e *Extractor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.cache {
		e.cache[i] = chunkChains{}
	}
}

// Extract возвращает цепочки границ всего мира в метрах.
// Пересобираются только грязные чанки; пересборка идет параллельно,
// по одному писателю на слот кеша.
func (e *Extractor) Extract(g *sim.Grid) [][]vec.Vec2Float {
	for cy := 0; cy < e.chunksY; cy++ {
		for cx := 0; cx < e.chunksX; cx++ {
			slot := cy*e.chunksX + cx
			if !g.ConsumeDirty(cx, cy) && e.cache[slot].populated {
				continue
			}
			cx, cy, slot := cx, cy, slot
			e.pool.Submit(func() {
				chains := e.buildChunk(g, cx, cy)
				e.mu.Lock()
				e.cache[slot] = chunkChains{chains: chains, populated: true}
				e.mu.Unlock()
			})
		}
	}
	e.pool.WaitAll()

	var all [][]vec.Vec2Float
	for i := range e.cache {
		all = append(all, e.cache[i].chains...)
	}
	return all
}

// buildChunk собирает и сшивает отрезки одного чанка
func (e *Extractor) buildChunk(g *sim.Grid, cx, cy int) [][]vec.Vec2Float {
	segs := e.collectSegments(g, cx, cy)
	if len(segs) == 0 {
		return nil
	}

	chains := stitch(segs, e.ppm)
	for i := range chains {
		chains[i] = simplify(chains[i], e.epsilon)
	}
	return chains
}

// collectSegments обходит твердые клетки чанка и порождает отрезки вдоль
// сторон, за которыми нет твердой клетки. Ориентация: твердое справа.
func (e *Extractor) collectSegments(g *sim.Grid, cx, cy int) []segment {
	x0 := cx * g.ChunkW()
	y0 := cy * g.ChunkH()

	var segs []segment
	for y := y0; y < y0+g.ChunkH(); y++ {
		for x := x0; x < x0+g.ChunkW(); x++ {
			if !g.IsMeshSolid(x, y) {
				continue
			}

			wx0 := float64(x) / e.ppm
			wx1 := float64(x+1) / e.ppm
			wy0 := float64(y) / e.ppm
			wy1 := float64(y+1) / e.ppm

			if !g.IsMeshSolid(x, y-1) { // верх
				segs = append(segs, segment{vec.Vec2Float{X: wx1, Y: wy0}, vec.Vec2Float{X: wx0, Y: wy0}})
			}
			if !g.IsMeshSolid(x, y+1) { // низ
				segs = append(segs, segment{vec.Vec2Float{X: wx0, Y: wy1}, vec.Vec2Float{X: wx1, Y: wy1}})
			}
			if !g.IsMeshSolid(x-1, y) { // лево
				segs = append(segs, segment{vec.Vec2Float{X: wx0, Y: wy0}, vec.Vec2Float{X: wx0, Y: wy1}})
			}
			if !g.IsMeshSolid(x+1, y) { // право
				segs = append(segs, segment{vec.Vec2Float{X: wx1, Y: wy1}, vec.Vec2Float{X: wx1, Y: wy0}})
			}
		}
	}
	return segs
}

// pointKey дает целочисленный ключ вершины: все координаты кратны 1/ppm,
// поэтому округление исключает потерю стыков из-за ошибок float
func pointKey(p vec.Vec2Float, ppm float64) uint64 {
	ix := int64(math.Round(p.X * ppm))
	iy := int64(math.Round(p.Y * ppm))
	return uint64(uint32(ix))<<32 | uint64(uint32(iy))
}

// stitch жадно сшивает отрезки в цепочки: очередной отрезок продолжается
// неиспользованным отрезком, начинающимся в его конце
func stitch(segs []segment, ppm float64) [][]vec.Vec2Float {
	byStart := make(map[uint64][]int, len(segs))
	for i, s := range segs {
		k := pointKey(s.a, ppm)
		byStart[k] = append(byStart[k], i)
	}

	used := make([]bool, len(segs))
	var chains [][]vec.Vec2Float

	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true

		chain := []vec.Vec2Float{segs[i].a, segs[i].b}
		tip := segs[i].b

		for {
			next := -1
			for _, j := range byStart[pointKey(tip, ppm)] {
				if !used[j] {
					next = j
					break
				}
			}
			if next < 0 {
				break
			}
			used[next] = true
			chain = append(chain, segs[next].b)
			tip = segs[next].b
		}

		chains = append(chains, chain)
	}
	return chains
}

// simplify удаляет средние вершины, коллинеарные соседям.
// Концевые вершины открытых цепочек всегда сохраняются, порядок не меняется.
// У замкнутой цепочки дополнительно схлопывается шов: если точка замыкания
// лежит на прямой, цепочка перезамыкается в ближайшем углу.
func simplify(chain []vec.Vec2Float, epsilon float64) []vec.Vec2Float {
	if len(chain) <= 2 {
		return chain
	}

	closed := chain[0] == chain[len(chain)-1]

	out := make([]vec.Vec2Float, 0, len(chain))
	out = append(out, chain[0])

	for i := 1; i < len(chain)-1; i++ {
		if collinear(out[len(out)-1], chain[i], chain[i+1], epsilon) {
			continue
		}
		out = append(out, chain[i])
	}

	out = append(out, chain[len(chain)-1])

	if closed && len(out) >= 4 && collinear(out[len(out)-2], out[0], out[1], epsilon) {
		out = out[1 : len(out)-1]
		out = append(out, out[0])
	}
	return out
}

// collinear проверяет, что cur лежит на отрезке prev-next без разворота
func collinear(prev, cur, next vec.Vec2Float, epsilon float64) bool {
	d1 := cur.Sub(prev)
	d2 := next.Sub(cur)
	cross := d1.X*d2.Y - d1.Y*d2.X
	dot := d1.X*d2.X + d1.Y*d2.Y
	return math.Abs(cross) < epsilon && dot > 0
}
