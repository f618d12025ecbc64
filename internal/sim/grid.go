package sim

import (
	"sync/atomic"

	"github.com/annel0/sand-engine/internal/logging"
)

// Grid представляет мир частиц: плоский массив клеток, разбитый на чанки
// для dirty-трекинга и параллельного обновления. Граница мира всегда камень.
//
// Флаги updated хранятся по байту на клетку: четырехфазная раскраска
// гарантирует, что конкурирующие чанки не пишут в одну и ту же клетку,
// а байтовая гранулярность исключает гонки на уровне слова.
type Grid struct {
	w, h             int
	chunksX, chunksY int
	chunkW, chunkH   int

	cells   []Particle
	updated []uint8
	dirty   []atomic.Bool
}

// NewGrid создает мир размером chunksX*chunksY чанков по chunkSize клеток.
// Все чанки изначально помечены грязными.
func NewGrid(chunksX, chunksY, chunkSize int) *Grid {
	if chunkSize <= 0 {
		chunkSize = 64
	}

	g := &Grid{
		w:       chunksX * chunkSize,
		h:       chunksY * chunkSize,
		chunksX: chunksX,
		chunksY: chunksY,
		chunkW:  chunkSize,
		chunkH:  chunkSize,
	}
	g.cells = make([]Particle, g.w*g.h)
	g.updated = make([]uint8, g.w*g.h)
	g.dirty = make([]atomic.Bool, chunksX*chunksY)

	g.stampBorder()
	g.MarkAllDirty()
	return g
}

// Width возвращает ширину мира в клетках
func (g *Grid) Width() int { return g.w }

// Height возвращает высоту мира в клетках
func (g *Grid) Height() int { return g.h }

// ChunksX возвращает количество чанков по горизонтали
func (g *Grid) ChunksX() int { return g.chunksX }

// ChunksY возвращает количество чанков по вертикали
func (g *Grid) ChunksY() int { return g.chunksY }

// ChunkW возвращает ширину чанка в клетках
func (g *Grid) ChunkW() int { return g.chunkW }

// ChunkH возвращает высоту чанка в клетках
func (g *Grid) ChunkH() int { return g.chunkH }

func (g *Grid) idx(x, y int) int { return y*g.w + x }

// InBounds проверяет попадание координат в мир
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.w && y >= 0 && y < g.h
}

// OnBorder проверяет, лежит ли клетка на каменной границе мира
func (g *Grid) OnBorder(x, y int) bool {
	return x == 0 || y == 0 || x == g.w-1 || y == g.h-1
}

// Get возвращает копию клетки. Вне мира возвращается камень:
// правилам движения это дает естественный "стены со всех сторон".
func (g *Grid) Get(x, y int) Particle {
	if !g.InBounds(x, y) {
		return Particle{ID: Stone}
	}
	return g.cells[g.idx(x, y)]
}

// at возвращает указатель на клетку без проверки границ
func (g *Grid) at(x, y int) *Particle {
	return &g.cells[g.idx(x, y)]
}

// SetCell закрашивает клетку материалом от имени хоста.
// Каменная граница и выход за пределы мира игнорируются молча.
func (g *Grid) SetCell(x, y int, m MaterialID) {
	if !g.InBounds(x, y) || g.OnBorder(x, y) {
		return
	}
	if !m.IsValid() {
		logging.LogCritical("SetCell: недопустимый материал %d в (%d,%d)", m, x, y)
		return
	}

	*g.at(x, y) = Particle{ID: m}
	g.markDirtyAt(x, y)
}

// Stamp записывает материал и владельца-тело в клетку (мост rigid body).
// Граница неприкосновенна, как и для SetCell.
func (g *Grid) Stamp(x, y int, m MaterialID, bodyID uint8) {
	if !g.InBounds(x, y) || g.OnBorder(x, y) {
		return
	}

	*g.at(x, y) = Particle{ID: m, BodyID: bodyID}
	g.markDirtyAt(x, y)
}

// Settle записывает осевший обломок: материал без владельца с выставленным
// флагом оседания. Правила границы те же, что у SetCell.
func (g *Grid) Settle(x, y int, m MaterialID) {
	if !g.InBounds(x, y) || g.OnBorder(x, y) {
		return
	}

	p := Particle{ID: m}
	p.MarkSettled()
	*g.at(x, y) = p
	g.markDirtyAt(x, y)
}

// Clear заполняет мир воздухом, восстанавливает каменную границу
// и помечает все чанки грязными
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = Particle{}
	}
	g.stampBorder()
	g.MarkAllDirty()
	g.ClearUpdated()
}

func (g *Grid) stampBorder() {
	for x := 0; x < g.w; x++ {
		g.cells[g.idx(x, 0)] = Particle{ID: Stone}
		g.cells[g.idx(x, g.h-1)] = Particle{ID: Stone}
	}
	for y := 0; y < g.h; y++ {
		g.cells[g.idx(0, y)] = Particle{ID: Stone}
		g.cells[g.idx(g.w-1, y)] = Particle{ID: Stone}
	}
}

// ClearUpdated сбрасывает флаги "клетка уже двигалась на этом шаге"
func (g *Grid) ClearUpdated() {
	for i := range g.updated {
		g.updated[i] = 0
	}
}

// MarkUpdated помечает клетку обработанной на текущем шаге
func (g *Grid) MarkUpdated(x, y int) {
	g.updated[g.idx(x, y)] = 1
}

// IsUpdated проверяет флаг обработки клетки
func (g *Grid) IsUpdated(x, y int) bool {
	return g.updated[g.idx(x, y)] != 0
}

// markDirtyAt помечает чанк клетки грязным; клетки на краю чанка
// дополнительно помечают соседние чанки
func (g *Grid) markDirtyAt(x, y int) {
	cx := x / g.chunkW
	cy := y / g.chunkH
	g.markChunkDirty(cx, cy)

	lx := x % g.chunkW
	ly := y % g.chunkH
	if lx == 0 {
		g.markChunkDirty(cx-1, cy)
	}
	if lx == g.chunkW-1 {
		g.markChunkDirty(cx+1, cy)
	}
	if ly == 0 {
		g.markChunkDirty(cx, cy-1)
	}
	if ly == g.chunkH-1 {
		g.markChunkDirty(cx, cy+1)
	}
}

func (g *Grid) markChunkDirty(cx, cy int) {
	if cx < 0 || cx >= g.chunksX || cy < 0 || cy >= g.chunksY {
		return
	}
	g.dirty[cy*g.chunksX+cx].Store(true)
}

// MarkAllDirty помечает все чанки грязными
func (g *Grid) MarkAllDirty() {
	for i := range g.dirty {
		g.dirty[i].Store(true)
	}
}

// ConsumeDirty атомарно снимает флаг грязного чанка.
// Возвращает true, если чанк был грязным; снимать флаг может только
// экстрактор сетки.
func (g *Grid) ConsumeDirty(cx, cy int) bool {
	if cx < 0 || cx >= g.chunksX || cy < 0 || cy >= g.chunksY {
		logging.LogCritical("ConsumeDirty: чанк (%d,%d) вне мира %dx%d", cx, cy, g.chunksX, g.chunksY)
		return false
	}
	return g.dirty[cy*g.chunksX+cx].Swap(false)
}

// IsMeshSolid сообщает, входит ли клетка в коллизионную сетку террейна.
// Клетки, проштампованные rigid body, в сетку не входят: их коллизии
// обслуживает само тело.
func (g *Grid) IsMeshSolid(x, y int) bool {
	if !g.InBounds(x, y) {
		return false
	}
	p := g.cells[g.idx(x, y)]
	return p.BodyID == 0 && p.ID.IsTerrainSolid()
}

// CopyMaterials копирует материалы всех клеток в буфер кадра.
// Буфер должен иметь размер Width*Height.
func (g *Grid) CopyMaterials(dst []uint8) {
	if len(dst) != len(g.cells) {
		logging.LogCritical("CopyMaterials: размер буфера %d != %d", len(dst), len(g.cells))
		return
	}
	for i := range g.cells {
		dst[i] = uint8(g.cells[i].ID)
	}
}

// CopyMaterialsRows копирует материалы строк [y0, y1) в срез dst,
// начиная с начала dst. Используется для параллельного снятия снапшота.
func (g *Grid) CopyMaterialsRows(dst []uint8, y0, y1 int) {
	for y := y0; y < y1; y++ {
		rowStart := y * g.w
		for x := 0; x < g.w; x++ {
			dst[rowStart+x-y0*g.w] = uint8(g.cells[rowStart+x].ID)
		}
	}
}

// CountMaterial возвращает количество клеток указанного материала
func (g *Grid) CountMaterial(m MaterialID) int {
	n := 0
	for i := range g.cells {
		if g.cells[i].ID == m {
			n++
		}
	}
	return n
}

// NonAirCount возвращает количество непустых клеток
func (g *Grid) NonAirCount() int {
	n := 0
	for i := range g.cells {
		if g.cells[i].ID != Air {
			n++
		}
	}
	return n
}
