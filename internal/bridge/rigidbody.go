package bridge

import (
	"fmt"
	"math"

	"github.com/annel0/sand-engine/internal/logging"
	"github.com/annel0/sand-engine/internal/physics"
	"github.com/annel0/sand-engine/internal/sim"
)

// BodyInfo описывает пиксельное представление rigid body в сетке
type BodyInfo struct {
	Body     *physics.Body
	HalfW    float64 // полуширина в метрах
	HalfH    float64 // полувысота в метрах
	Material sim.MaterialID
}

// Displaced представляет частицу террейна, вытесненную телом при штамповке
type Displaced struct {
	X, Y     int
	Material sim.MaterialID
}

// RigidBridge связывает rigid body и сетку частиц: перед шагом физики
// пиксели тел извлекаются из мира, после шага штампуются обратно,
// а вытесненный террейн уходит в пул обломков.
type RigidBridge struct {
	ppm    float64
	bodies map[uint8]*BodyInfo
	order  []uint8 // порядок регистрации: детерминированный обход
	nextID int     // id не переиспользуются в пределах жизни мира
}

// NewRigidBridge создает мост с указанным масштабом пиксель/метр
func NewRigidBridge(ppm float64) *RigidBridge {
	return &RigidBridge{
		ppm:    ppm,
		bodies: make(map[uint8]*BodyInfo),
		nextID: 1, // 0 зарезервирован за террейном
	}
}

// Register выдает телу идентификатор 1..255. Идентификаторы не
// переиспользуются; при исчерпании возвращается ошибка, хост должен
// вызвать Reset.
func (rb *RigidBridge) Register(body *physics.Body, width, height float64, material sim.MaterialID) (uint8, error) {
	if rb.nextID > 255 {
		return 0, fmt.Errorf("исчерпано пространство идентификаторов тел (255)")
	}

	id := uint8(rb.nextID)
	rb.nextID++

	rb.bodies[id] = &BodyInfo{
		Body:     body,
		HalfW:    width * 0.5,
		HalfH:    height * 0.5,
		Material: material,
	}
	rb.order = append(rb.order, id)
	return id, nil
}

// Clear забывает все тела; сами физические тела уничтожает World.Reset
func (rb *RigidBridge) Clear() {
	rb.bodies = make(map[uint8]*BodyInfo)
	rb.order = rb.order[:0]
	rb.nextID = 1
}

// Count возвращает количество зарегистрированных тел
func (rb *RigidBridge) Count() int {
	return len(rb.bodies)
}

// Each вызывает fn для каждого тела в порядке регистрации
func (rb *RigidBridge) Each(fn func(id uint8, info *BodyInfo)) {
	for _, id := range rb.order {
		if info, ok := rb.bodies[id]; ok {
			fn(id, info)
		}
	}
}

// forEachPixel обходит AABB тела и вызывает fn для каждого пикселя,
// центр которого лежит внутри форм тела
func (rb *RigidBridge) forEachPixel(info *BodyInfo, fn func(px, py int)) {
	if !info.Body.Valid() {
		return
	}

	lower, upper := info.Body.AABB(info.HalfW, info.HalfH)

	minX := int(math.Floor(lower.X * rb.ppm))
	maxX := int(math.Ceil(upper.X * rb.ppm))
	minY := int(math.Floor(lower.Y * rb.ppm))
	maxY := int(math.Ceil(upper.Y * rb.ppm))

	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			wx := (float64(px) + 0.5) / rb.ppm
			wy := (float64(py) + 0.5) / rb.ppm
			if info.Body.TestPoint(wx, wy) {
				fn(px, py)
			}
		}
	}
}

// ExtractBody убирает штамп тела из мира: клетки с его id становятся
// воздухом, чтобы клеточный автомат не видел тело во время шага физики
func (rb *RigidBridge) ExtractBody(id uint8, g *sim.Grid) {
	info, ok := rb.bodies[id]
	if !ok {
		logging.LogCritical("ExtractBody: тело %d не зарегистрировано", id)
		return
	}

	rb.forEachPixel(info, func(px, py int) {
		if g.Get(px, py).BodyID == id {
			g.Stamp(px, py, sim.Air, 0)
		}
	})
}

// ExtractAll извлекает штампы всех тел
func (rb *RigidBridge) ExtractAll(g *sim.Grid) {
	for _, id := range rb.order {
		rb.ExtractBody(id, g)
	}
}

// RestoreBody штампует тело обратно в мир по его новой позе.
// Возвращает список вытесненных частиц террейна.
func (rb *RigidBridge) RestoreBody(id uint8, g *sim.Grid) []Displaced {
	info, ok := rb.bodies[id]
	if !ok {
		logging.LogCritical("RestoreBody: тело %d не зарегистрировано", id)
		return nil
	}

	var displaced []Displaced
	rb.forEachPixel(info, func(px, py int) {
		p := g.Get(px, py)
		if p.BodyID == 0 && p.ID != sim.Air {
			displaced = append(displaced, Displaced{X: px, Y: py, Material: p.ID})
		}
		g.Stamp(px, py, info.Material, id)
	})
	return displaced
}

// RestoreAll штампует все тела и собирает весь вытесненный террейн
func (rb *RigidBridge) RestoreAll(g *sim.Grid) []Displaced {
	var all []Displaced
	for _, id := range rb.order {
		all = append(all, rb.RestoreBody(id, g)...)
	}
	return all
}

// SpawnTopY возвращает высоту выброса обломков для тела: минимальный Y
// углов его AABB минус два пикселя. Вытесненный материал вылетает
// над телом, а не внутри него.
func (rb *RigidBridge) SpawnTopY(info *BodyInfo) float64 {
	lower, _ := info.Body.AABB(info.HalfW, info.HalfH)
	return lower.Y - 2.0/rb.ppm
}
