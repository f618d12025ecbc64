package sim

// MaterialID представляет идентификатор материала частицы
type MaterialID uint8

// Константы материалов
const (
	Air   MaterialID = iota // 0
	Stone                   // 1
	Sand                    // 2
	Water                   // 3
	Wood                    // 4 - материал ящиков (rigid body)

	materialCount
)

// Флаг "осевшей" частицы в старшем бите поля Lifetime;
// младшие 15 бит — счетчик времени жизни в миллисекундах.
const settledBit uint16 = 0x8000

var materialNames = [materialCount]string{
	Air:   "Air",
	Stone: "Stone",
	Sand:  "Sand",
	Water: "Water",
	Wood:  "Wood",
}

// String возвращает имя материала
func (m MaterialID) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return "Unknown"
}

// IsValid проверяет, является ли значение допустимым материалом
func (m MaterialID) IsValid() bool {
	return m < materialCount
}

// IsTerrainSolid сообщает, участвует ли материал в коллизионной сетке террейна.
// Вода в сетку не входит; воздух не твердый.
func (m MaterialID) IsTerrainSolid() bool {
	return m == Stone || m == Sand || m == Wood
}

// Movable сообщает, есть ли у материала правило движения
func (m MaterialID) Movable() bool {
	return m == Sand || m == Water
}

// Particle представляет одну клетку сетки
type Particle struct {
	ID       MaterialID // материал определяет поведение и цвет
	BodyID   uint8      // 0 = террейн/свободная клетка, иначе id rigid body
	Lifetime uint16     // старший бит - флаг оседания, остальное - возраст в мс
}

// Settled возвращает true, если частица помечена как осевшая
func (p Particle) Settled() bool {
	return p.Lifetime&settledBit != 0
}

// MarkSettled выставляет флаг оседания
func (p *Particle) MarkSettled() {
	p.Lifetime |= settledBit
}

// AgeMs возвращает возраст частицы в миллисекундах
func (p Particle) AgeMs() uint16 {
	return p.Lifetime &^ settledBit
}

// AddAgeMs прибавляет возраст с насыщением по 15 битам
func (p *Particle) AddAgeMs(ms uint16) {
	age := p.AgeMs()
	if uint32(age)+uint32(ms) > uint32(settledBit-1) {
		age = settledBit - 1
	} else {
		age += ms
	}
	p.Lifetime = p.Lifetime&settledBit | age
}
