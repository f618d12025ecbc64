package sim

// RNG представляет быстрый детерминированный генератор xorshift64*.
// Каждая задача обновления чанка получает собственный экземпляр,
// поэтому генератор не требует синхронизации.
type RNG struct {
	state uint64
}

// splitmix64 разводит близкие сиды по всему пространству состояний
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// NewRNG создает генератор с указанным сидом
func NewRNG(seed int64) *RNG {
	s := splitmix64(uint64(seed))
	if s == 0 {
		s = 0x9E3779B97F4A7C15
	}
	return &RNG{state: s}
}

// NewChunkRNG создает генератор для задачи обновления одного чанка.
// Сид зависит от номера шага и координат чанка, что делает однопоточный
// прогон воспроизводимым.
func NewChunkRNG(seed int64, step uint64, cx, cy int) *RNG {
	mixed := splitmix64(uint64(seed)) ^ splitmix64(step) ^ splitmix64(uint64(cx)<<32|uint64(uint32(cy)))
	if mixed == 0 {
		mixed = 1
	}
	return &RNG{state: mixed}
}

// Next возвращает следующее 64-битное значение
func (r *RNG) Next() uint64 {
	x := r.state
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	r.state = x
	return x * 0x2545F4914F6CDD1D
}

// Bool возвращает случайный бит
func (r *RNG) Bool() bool {
	return r.Next()&1 == 1
}

// Intn возвращает случайное значение в [0, n)
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}

// Float64 возвращает случайное значение в [0, 1)
func (r *RNG) Float64() float64 {
	return float64(r.Next()>>11) / (1 << 53)
}
