package physics

import (
	"math"

	"github.com/ByteArena/box2d"

	"github.com/annel0/sand-engine/internal/logging"
	"github.com/annel0/sand-engine/internal/vec"
)

// World оборачивает физический движок: статичное тело террейна с цепочками
// границ, динамические ящики и круги-обломки. Весь доступ идет под внешним
// замком симуляции; сам адаптер синхронизации не добавляет.
type World struct {
	world    *box2d.B2World
	terrain  *box2d.B2Body
	gravityY float64

	dynamicCount int
}

// Body представляет хендл физического тела. После уничтожения тела
// хендл становится невалидным и все операции превращаются в no-op.
type Body struct {
	b       *box2d.B2Body
	valid   bool
	dynamic bool
}

// NewWorld создает физический мир с гравитацией (0, gravityY), y вниз
func NewWorld(gravityY float64) *World {
	w := &World{gravityY: gravityY}
	w.init()
	return w
}

func (w *World) init() {
	world := box2d.MakeB2World(box2d.MakeB2Vec2(0, w.gravityY))
	w.world = &world

	bd := box2d.MakeB2BodyDef()
	w.terrain = w.world.CreateBody(&bd)
	w.dynamicCount = 0
}

// Reset уничтожает мир вместе со всеми телами и создает новый.
// Все выданные ранее хендлы становятся недействительными.
func (w *World) Reset() {
	w.init()
}

// Step продвигает физический мир на dt секунд
func (w *World) Step(dt float64) {
	w.world.Step(dt, 8, 3)
}

// UpdateTerrainMesh заменяет все формы тела террейна новым набором цепочек.
// Замкнутые цепочки (первая точка совпадает с последней) становятся петлями,
// если без замыкающей вершины остается не меньше трех точек; иначе, как и
// короткие открытые цепочки, они разбиваются на отдельные отрезки.
func (w *World) UpdateTerrainMesh(chains [][]vec.Vec2Float) {
	for f := w.terrain.GetFixtureList(); f != nil; {
		next := f.GetNext()
		w.terrain.DestroyFixture(f)
		f = next
	}

	for _, chain := range chains {
		n := len(chain)
		if n < 2 {
			continue
		}

		closed := false
		if n >= 3 {
			const threshold = 0.001
			closed = chain[0].DistanceTo(chain[n-1]) < threshold
		}

		if closed {
			// петля задается без дублирующей замыкающей вершины
			pts := make([]box2d.B2Vec2, 0, n-1)
			for _, p := range chain[:n-1] {
				pts = append(pts, box2d.MakeB2Vec2(p.X, p.Y))
			}
			if len(pts) >= 3 {
				shape := box2d.MakeB2ChainShape()
				shape.CreateLoop(pts, len(pts))
				w.createTerrainFixture(&shape)
			} else {
				w.createTerrainSegments(chain)
			}
			continue
		}

		if n <= 3 {
			w.createTerrainSegments(chain)
			continue
		}

		pts := make([]box2d.B2Vec2, 0, n)
		for _, p := range chain {
			pts = append(pts, box2d.MakeB2Vec2(p.X, p.Y))
		}
		shape := box2d.MakeB2ChainShape()
		shape.CreateChain(pts, len(pts))
		w.createTerrainFixture(&shape)
	}
}

// createTerrainSegments добавляет цепочку как отдельные отрезки
func (w *World) createTerrainSegments(chain []vec.Vec2Float) {
	for i := 0; i+1 < len(chain); i++ {
		shape := box2d.MakeB2EdgeShape()
		shape.Set(box2d.MakeB2Vec2(chain[i].X, chain[i].Y), box2d.MakeB2Vec2(chain[i+1].X, chain[i+1].Y))
		w.createTerrainFixture(&shape)
	}
}

func (w *World) createTerrainFixture(shape box2d.B2ShapeInterface) {
	fd := box2d.MakeB2FixtureDef()
	fd.Shape = shape
	fd.Friction = 0.6
	fd.Filter = box2d.MakeB2Filter()
	fd.Filter.CategoryBits = CategoryTerrain
	fd.Filter.MaskBits = 0xFFFF
	w.terrain.CreateFixtureFromDef(&fd)
}

// TerrainShapeCount возвращает количество форм на теле террейна
func (w *World) TerrainShapeCount() int {
	n := 0
	for f := w.terrain.GetFixtureList(); f != nil; f = f.GetNext() {
		n++
	}
	return n
}

// CreateBox создает динамический ящик размером width x height метров
// с центром в (x, y)
func (w *World) CreateBox(x, y, width, height float64) *Body {
	bd := box2d.MakeB2BodyDef()
	bd.Type = box2d.B2BodyType.B2_dynamicBody
	bd.Position = box2d.MakeB2Vec2(x, y)

	body := w.world.CreateBody(&bd)

	shape := box2d.MakeB2PolygonShape()
	shape.SetAsBox(width*0.5, height*0.5)

	fd := box2d.MakeB2FixtureDef()
	fd.Shape = &shape
	fd.Density = 1.0
	fd.Friction = 0.3
	fd.Restitution = 0.2
	fd.Filter = box2d.MakeB2Filter()
	fd.Filter.CategoryBits = CategoryDynamic
	fd.Filter.MaskBits = CategoryTerrain | CategoryDynamic | CategoryDebris
	body.CreateFixtureFromDef(&fd)

	w.dynamicCount++
	return &Body{b: body, valid: true, dynamic: true}
}

// CreateDebris создает круг-обломок радиусом radius метров с начальной
// скоростью (vx, vy)
func (w *World) CreateDebris(x, y, vx, vy, radius float64) *Body {
	bd := box2d.MakeB2BodyDef()
	bd.Type = box2d.B2BodyType.B2_dynamicBody
	bd.Position = box2d.MakeB2Vec2(x, y)
	bd.LinearVelocity = box2d.MakeB2Vec2(vx, vy)

	body := w.world.CreateBody(&bd)

	shape := box2d.MakeB2CircleShape()
	shape.M_radius = radius

	fd := box2d.MakeB2FixtureDef()
	fd.Shape = &shape
	fd.Density = 0.001
	fd.Friction = 0.5
	fd.Restitution = 0.3
	fd.Filter = box2d.MakeB2Filter()
	fd.Filter.CategoryBits = CategoryDebris
	fd.Filter.MaskBits = CategoryTerrain | CategoryDynamic
	body.CreateFixtureFromDef(&fd)

	w.dynamicCount++
	return &Body{b: body, valid: true, dynamic: true}
}

// DestroyBody уничтожает тело и инвалидирует хендл
func (w *World) DestroyBody(b *Body) {
	if b == nil || !b.valid {
		return
	}
	w.world.DestroyBody(b.b)
	b.valid = false
	if b.dynamic {
		w.dynamicCount--
	}
}

// DynamicBodyCount возвращает количество живых динамических тел
func (w *World) DynamicBodyCount() int {
	return w.dynamicCount
}

// Valid проверяет, что хендл тела еще действителен
func (b *Body) Valid() bool {
	return b != nil && b.valid
}

// Position возвращает позицию тела в метрах
func (b *Body) Position() vec.Vec2Float {
	if !b.Valid() {
		return vec.Vec2Float{}
	}
	p := b.b.GetPosition()
	return vec.Vec2Float{X: p.X, Y: p.Y}
}

// LinearVelocity возвращает линейную скорость тела
func (b *Body) LinearVelocity() vec.Vec2Float {
	if !b.Valid() {
		return vec.Vec2Float{}
	}
	v := b.b.GetLinearVelocity()
	return vec.Vec2Float{X: v.X, Y: v.Y}
}

// SetLinearVelocity задает линейную скорость тела
func (b *Body) SetLinearVelocity(vx, vy float64) {
	if !b.Valid() {
		return
	}
	b.b.SetLinearVelocity(box2d.MakeB2Vec2(vx, vy))
}

// SetLinearVelocityVec задает линейную скорость вектором
func (b *Body) SetLinearVelocityVec(v vec.Vec2Float) {
	b.SetLinearVelocity(v.X, v.Y)
}

// WorldPoint преобразует локальную точку тела в мировые координаты
func (b *Body) WorldPoint(lx, ly float64) vec.Vec2Float {
	if !b.Valid() {
		return vec.Vec2Float{}
	}
	p := b.b.GetWorldPoint(box2d.MakeB2Vec2(lx, ly))
	return vec.Vec2Float{X: p.X, Y: p.Y}
}

// TestPoint проверяет, попадает ли мировая точка внутрь любой формы тела
func (b *Body) TestPoint(x, y float64) bool {
	if !b.Valid() {
		return false
	}
	p := box2d.MakeB2Vec2(x, y)
	for f := b.b.GetFixtureList(); f != nil; f = f.GetNext() {
		if f.TestPoint(p) {
			return true
		}
	}
	return false
}

// AABB возвращает мировой AABB повернутого прямоугольника с полуразмерами
// (hw, hh) вокруг центра тела
func (b *Body) AABB(hw, hh float64) (lower, upper vec.Vec2Float) {
	if !b.Valid() {
		logging.LogCritical("AABB: запрос у невалидного тела")
		return
	}

	corners := [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	lower = vec.Vec2Float{X: math.Inf(1), Y: math.Inf(1)}
	upper = vec.Vec2Float{X: math.Inf(-1), Y: math.Inf(-1)}

	for _, c := range corners {
		p := b.WorldPoint(c[0], c[1])
		lower.X = math.Min(lower.X, p.X)
		lower.Y = math.Min(lower.Y, p.Y)
		upper.X = math.Max(upper.X, p.X)
		upper.Y = math.Max(upper.Y, p.Y)
	}
	return lower, upper
}
