package sim

// Rules содержит правила движения материалов. Чистые функции над Grid и RNG:
// одно правило вызывается не более одного раза на клетку за шаг.
type Rules struct {
	WaterMaxDist int // максимальная латеральная дальность воды за шаг
	WaterFalloff int // знаменатель затухания: больше значение - короче растекание
}

// UpdateCell применяет правило материала клетки
func (r Rules) UpdateCell(g *Grid, x, y int, rng *RNG) {
	switch g.cells[g.idx(x, y)].ID {
	case Sand:
		r.UpdateSand(g, x, y, rng)
	case Water:
		r.UpdateWater(g, x, y, rng)
	}
}

// swap меняет местами содержимое двух клеток, помечая обе как обновленные
// и их чанки грязными. Движущиеся частицы стареют на один кадр (16 мс).
func (g *Grid) swap(x1, y1, x2, y2 int) {
	i1 := g.idx(x1, y1)
	i2 := g.idx(x2, y2)
	g.cells[i1], g.cells[i2] = g.cells[i2], g.cells[i1]
	g.cells[i1].AddAgeMs(16)
	g.cells[i2].AddAgeMs(16)

	g.MarkUpdated(x1, y1)
	g.MarkUpdated(x2, y2)
	g.markDirtyAt(x1, y1)
	g.markDirtyAt(x2, y2)
}

// UpdateSand обрабатывает песчинку: вниз, затем по диагоналям.
// В воздух - перемещение, в воду - обмен с вытеснением воды наверх.
func (r Rules) UpdateSand(g *Grid, x, y int, rng *RNG) {
	var dirs = [3][2]int{
		{0, 1},  // вниз
		{-1, 1}, // вниз-влево
		{1, 1},  // вниз-вправо
	}

	for _, d := range dirs {
		nx := x + d[0]
		ny := y + d[1]

		target := g.Get(nx, ny)
		if target.BodyID != 0 {
			continue
		}

		switch target.ID {
		case Air:
			g.swap(x, y, nx, ny)
			return
		case Water:
			g.swap(x, y, nx, ny)
			// Вытесненная вода оказалась на месте песчинки; даем ей
			// растечься сразу, чтобы она не ползла вверх на следующих шагах.
			r.UpdateWater(g, x, y, rng)
			return
		}
	}
}

// UpdateWater обрабатывает клетку воды: падение вниз, иначе растекание
// в случайную сторону с вероятностным затуханием по дальности.
func (r Rules) UpdateWater(g *Grid, x, y int, rng *RNG) {
	below := g.Get(x, y+1)
	if below.ID == Air && below.BodyID == 0 {
		g.swap(x, y, x, y+1)
		return
	}

	dir := 1
	if rng.Bool() {
		dir = -1
	}

	if r.flowWater(g, x, y, dir, rng) {
		return
	}
	r.flowWater(g, x, y, -dir, rng)
}

// flowWater прощупывает путь растекания: на каждом шаге предпочтителен
// сход по диагонали вниз, горизонтальная клетка служит лишь проходом.
// Возвращает true, если вода переместилась.
func (r Rules) flowWater(g *Grid, x, y, dir int, rng *RNG) bool {
	cx := x
	for step := 1; step <= r.WaterMaxDist; step++ {
		if step > 1 && !r.keepFlowing(step, rng) {
			break
		}
		cx += dir

		diag := g.Get(cx, y+1)
		if diag.ID == Air && diag.BodyID == 0 {
			g.swap(x, y, cx, y+1)
			return true
		}

		side := g.Get(cx, y)
		if side.ID == Air && side.BodyID == 0 {
			continue
		}
		break
	}
	return false
}

// keepFlowing решает, продолжается ли прощупывание за пределами первого шага.
// При WaterFalloff == 1 вода дотягивается до WaterMaxDist; при
// WaterFalloff >= WaterMaxDist+1 дальше первого шага она не идет.
func (r Rules) keepFlowing(step int, rng *RNG) bool {
	threshold := r.WaterMaxDist + 2 - step - r.WaterFalloff
	if threshold <= 0 {
		return false
	}
	return int(rng.Next()%uint64(r.WaterFalloff)) < threshold
}
