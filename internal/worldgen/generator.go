package worldgen

import (
	"github.com/aquilax/go-perlin"

	"github.com/annel0/sand-engine/internal/config"
	"github.com/annel0/sand-engine/internal/logging"
	"github.com/annel0/sand-engine/internal/sim"
)

// Константы рельефа
const (
	sandPocketMin = 0.62 // выше - карман песка вместо камня
	waterLensMax  = 0.33 // ниже - линза воды над поверхностью
	surfaceScale  = 0.015
	depositScale  = 0.05
)

// Generator генерирует стартовый рельеф мира: каменные гряды по шуму
// высоты, карманы песка в толще и линзы воды в низинах
type Generator struct {
	seed   int64
	noise  *perlin.Perlin
	ground float64 // доля высоты мира, ниже которой начинается грунт
}

// NewGenerator создает генератор рельефа
func NewGenerator(seed int64, cfg config.WorldgenConfig) *Generator {
	octaves := cfg.Octaves
	if octaves <= 0 {
		octaves = 3
	}
	return &Generator{
		seed:   seed,
		noise:  perlin.NewPerlin(cfg.Alpha, cfg.Beta, int32(octaves), seed),
		ground: cfg.GroundLevel,
	}
}

// noise2D возвращает шум Перлина в диапазоне 0..1
func (gen *Generator) noise2D(x, y float64) float64 {
	return (gen.noise.Noise2D(x, y) + 1.0) / 2.0
}

// Generate заполняет сетку стартовым рельефом. Вызывается до запуска
// симуляции; существующее содержимое внутри границы перезаписывается.
func (gen *Generator) Generate(g *sim.Grid) {
	w := g.Width()
	h := g.Height()
	groundBase := float64(h) * gen.ground

	for x := 1; x < w-1; x++ {
		// высота поверхности колонки
		relief := gen.noise2D(float64(x)*surfaceScale, 0.5)
		surface := int(groundBase - (relief-0.5)*float64(h)*0.25)
		if surface < 1 {
			surface = 1
		}
		if surface > h-2 {
			surface = h - 2
		}

		for y := 1; y < h-1; y++ {
			switch {
			case y > surface:
				deposit := gen.noise2D(float64(x)*depositScale, float64(y)*depositScale)
				if deposit > sandPocketMin {
					g.SetCell(x, y, sim.Sand)
				} else {
					g.SetCell(x, y, sim.Stone)
				}
			case y > surface-4:
				// неглубокие низины заливаются водой
				lens := gen.noise2D(float64(x)*surfaceScale*2, 7.3)
				if lens < waterLensMax {
					g.SetCell(x, y, sim.Water)
				} else {
					g.SetCell(x, y, sim.Air)
				}
			default:
				g.SetCell(x, y, sim.Air)
			}
		}
	}

	logging.LogInfo("Рельеф сгенерирован: %d непустых клеток", g.NonAirCount())
}
