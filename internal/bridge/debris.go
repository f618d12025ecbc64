package bridge

import (
	"math"

	"github.com/annel0/sand-engine/internal/config"
	"github.com/annel0/sand-engine/internal/physics"
	"github.com/annel0/sand-engine/internal/sim"
	"github.com/annel0/sand-engine/internal/vec"
)

// Debris представляет выброшенную частицу в виде физического круга
type Debris struct {
	body          *physics.Body
	material      sim.MaterialID
	settledFrames uint8
	ageFrames     uint16
	stuckFrames   uint16
}

// DebrisPool отслеживает обломки от рождения до оседания в сетку или
// отбраковки (возраст, вылет за мир, застревание в твердом)
type DebrisPool struct {
	ppm   float64
	cfg   config.DebrisConfig
	world *physics.World
	rng   *sim.RNG

	debris []*Debris
}

// NewDebrisPool создает пул обломков
func NewDebrisPool(world *physics.World, ppm float64, cfg config.DebrisConfig, seed int64) *DebrisPool {
	return &DebrisPool{
		ppm:   ppm,
		cfg:   cfg,
		world: world,
		rng:   sim.NewRNG(seed),
	}
}

// Spawn создает обломок на колонке пикселя xPx с высотой выброса topY.
// Скорость случайная: мягкий разлет по горизонтали и хлопок вверх.
func (dp *DebrisPool) Spawn(xPx int, topY float64, material sim.MaterialID) {
	vx := float64(dp.rng.Intn(100)-50) / 25.0 // +/- 2.0 м/с
	vy := -1.0 - float64(dp.rng.Intn(50))/25.0 // -1.0 .. -3.0 м/с

	radius := 0.5 / dp.ppm
	body := dp.world.CreateDebris(float64(xPx)/dp.ppm, topY, vx, vy, radius)

	dp.debris = append(dp.debris, &Debris{body: body, material: material})
}

// Count возвращает количество живых обломков
func (dp *DebrisPool) Count() int {
	return len(dp.debris)
}

// Clear забывает все обломки; физические тела уничтожает World.Reset
func (dp *DebrisPool) Clear() {
	dp.debris = dp.debris[:0]
}

// Positions возвращает позиции живых обломков по материалам,
// чтобы хост мог отрисовать их без доступа к физическому миру
func (dp *DebrisPool) Positions() map[sim.MaterialID][]vec.Vec2Float {
	out := make(map[sim.MaterialID][]vec.Vec2Float)
	for _, d := range dp.debris {
		if !d.body.Valid() {
			continue
		}
		out[d.material] = append(out[d.material], d.body.Position())
	}
	return out
}

// Update продвигает жизненный цикл обломков на один физический кадр:
// отбраковка, торможение внутри твердого, оседание на опору.
func (dp *DebrisPool) Update(g *sim.Grid) {
	worldW := float64(g.Width()) / dp.ppm
	worldH := float64(g.Height()) / dp.ppm

	alive := dp.debris[:0]
	for _, d := range dp.debris {
		if !d.body.Valid() {
			continue
		}

		pos := d.body.Position()
		if !isFinite(pos.X) || !isFinite(pos.Y) ||
			pos.X < -10.0 || pos.X > worldW+10.0 ||
			pos.Y < -10.0 || pos.Y > worldH+10.0 {
			dp.world.DestroyBody(d.body)
			continue
		}

		d.ageFrames++
		if int(d.ageFrames) > dp.cfg.MaxAgeFrames {
			dp.world.DestroyBody(d.body)
			continue
		}

		vel := d.body.LinearVelocity()
		speed := vel.Length()

		px := int(math.Round(pos.X * dp.ppm))
		py := int(math.Round(pos.Y * dp.ppm))
		interior := px > 0 && px < g.Width()-1 && py > 0 && py < g.Height()-1

		overlapSolid := false
		if interior && g.Get(px, py).ID != sim.Air {
			overlapSolid = true
			// торможение внутри твердого
			vel = vel.Mul(0.8)
			d.body.SetLinearVelocityVec(vel)
			speed *= 0.8
		}

		if overlapSolid {
			d.stuckFrames++
			if int(d.stuckFrames) > dp.cfg.MaxStuckFrames {
				dp.world.DestroyBody(d.body)
				continue
			}
		} else {
			d.stuckFrames = 0
			if speed < dp.cfg.SettleVelocity {
				d.settledFrames++
			} else {
				d.settledFrames = 0
			}
		}

		if int(d.settledFrames) >= dp.cfg.SettleFrames {
			if interior && g.Get(px, py).ID == sim.Air && g.Get(px, py+1).ID != sim.Air {
				g.Settle(px, py, d.material)
				dp.world.DestroyBody(d.body)
				continue
			}
			// опоры нет - пробуем осесть позже
			d.settledFrames = 0
		}

		alive = append(alive, d)
	}
	dp.debris = alive
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
