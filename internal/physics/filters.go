package physics

// Категории коллизионных фильтров
const (
	CategoryTerrain uint16 = 0x1
	CategoryDynamic uint16 = 0x2
	CategoryDebris  uint16 = 0x4
)
