package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации симуляции.
// Все значения имеют дефолты; YAML файл и переменные окружения опциональны.

type Config struct {
	World    WorldConfig    `yaml:"world"`
	Water    WaterConfig    `yaml:"water"`
	Mesh     MeshConfig     `yaml:"mesh"`
	Debris   DebrisConfig   `yaml:"debris"`
	Physics  PhysicsConfig  `yaml:"physics"`
	Workers  WorkersConfig  `yaml:"workers"`
	Server   ServerConfig   `yaml:"server"`
	Worldgen WorldgenConfig `yaml:"worldgen"`
}

// WorldConfig описывает размеры мира в чанках и сид генерации
type WorldConfig struct {
	ChunksX    int   `yaml:"chunks_x"`
	ChunksY    int   `yaml:"chunks_y"`
	ChunkSize  int   `yaml:"chunk_size"`
	Seed       int64 `yaml:"seed"`
}

// WaterConfig управляет латеральным растеканием воды
type WaterConfig struct {
	MaxDist       int `yaml:"max_dist"`
	SpreadFalloff int `yaml:"spread_falloff"`
}

// MeshConfig управляет построением коллизионной сетки террейна
type MeshConfig struct {
	SimplificationEpsilon float64 `yaml:"simplification_epsilon"`
}

// DebrisConfig пороги жизненного цикла обломков
type DebrisConfig struct {
	MaxAgeFrames   int     `yaml:"max_age_frames"`
	SettleVelocity float64 `yaml:"settle_velocity"`
	SettleFrames   int     `yaml:"settle_frames"`
	MaxStuckFrames int     `yaml:"max_stuck_frames"`
}

// PhysicsConfig параметры физического мира
type PhysicsConfig struct {
	PixelsPerMeter float64 `yaml:"pixels_per_meter"`
	StepHz         int     `yaml:"step_hz"`
	GravityY       float64 `yaml:"gravity_y"`
}

// WorkersConfig размер пула воркеров; 0 означает runtime.NumCPU()
type WorkersConfig struct {
	Count int `yaml:"count"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// WorldgenConfig управляет генерацией стартового рельефа
type WorldgenConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Alpha       float64 `yaml:"alpha"`
	Beta        float64 `yaml:"beta"`
	Octaves     int     `yaml:"octaves"`
	GroundLevel float64 `yaml:"ground_level"` // доля высоты мира, 0..1
}

// GetRESTPort возвращает REST порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "SAND_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "SAND_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Dt возвращает фиксированный шаг физики в секундах
func (p *PhysicsConfig) Dt() float64 {
	hz := p.StepHz
	if hz <= 0 {
		hz = 60
	}
	return 1.0 / float64(hz)
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		World:   WorldConfig{ChunksX: 7, ChunksY: 5, ChunkSize: 64, Seed: 1},
		Water:   WaterConfig{MaxDist: 10, SpreadFalloff: 1},
		Mesh:    MeshConfig{SimplificationEpsilon: 1e-4},
		Debris:  DebrisConfig{MaxAgeFrames: 420, SettleVelocity: 0.5, SettleFrames: 5, MaxStuckFrames: 10},
		Physics: PhysicsConfig{PixelsPerMeter: 32.0, StepHz: 60, GravityY: 10.0},
		Workers: WorkersConfig{Count: 0},
		Server:  ServerConfig{},
		Worldgen: WorldgenConfig{
			Enabled:     false,
			Alpha:       2.0,
			Beta:        2.0,
			Octaves:     3,
			GroundLevel: 0.7,
		},
	}
}

// Load читает YAML файл конфигурации поверх дефолтов.
// Если path == "", пытается прочитать из ENV SAND_CONFIG;
// если путь не задан ни аргументом, ни ENV, возвращаются дефолты.
// Отсутствующий или битый файл по заданному пути дает ошибку.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SAND_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	return cfg, nil
}

// Validate проверяет согласованность значений и чинит очевидно некорректные
func (c *Config) Validate() error {
	if c.World.ChunksX <= 0 || c.World.ChunksY <= 0 {
		return fmt.Errorf("размер мира должен быть положительным: %dx%d чанков", c.World.ChunksX, c.World.ChunksY)
	}
	if c.World.ChunkSize <= 0 {
		c.World.ChunkSize = 64
	}
	if c.Water.MaxDist < 1 {
		c.Water.MaxDist = 1
	}
	// Фазовая раскраска чанков безопасна, пока дальность воды меньше
	// половины чанка: записи двух конкурирующих чанков не пересекаются
	if c.Water.MaxDist > (c.World.ChunkSize-2)/2 {
		c.Water.MaxDist = (c.World.ChunkSize - 2) / 2
	}
	if c.Water.SpreadFalloff < 1 {
		c.Water.SpreadFalloff = 1
	}
	if c.Physics.PixelsPerMeter <= 0 {
		c.Physics.PixelsPerMeter = 32.0
	}
	return nil
}
