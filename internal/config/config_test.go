package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.World.ChunksX != 7 || cfg.World.ChunksY != 5 {
		t.Errorf("Ожидался мир 7x5 чанков, получено %dx%d", cfg.World.ChunksX, cfg.World.ChunksY)
	}
	if cfg.World.ChunkSize != 64 {
		t.Errorf("Ожидался чанк 64, получено %d", cfg.World.ChunkSize)
	}
	if cfg.Water.MaxDist != 10 || cfg.Water.SpreadFalloff != 1 {
		t.Error("Неверные дефолты воды")
	}
	if cfg.Physics.PixelsPerMeter != 32.0 {
		t.Errorf("Ожидалось 32 пикселя на метр, получено %f", cfg.Physics.PixelsPerMeter)
	}
	if cfg.Debris.MaxAgeFrames != 420 || cfg.Debris.SettleFrames != 5 || cfg.Debris.MaxStuckFrames != 10 {
		t.Error("Неверные дефолты обломков")
	}
}

func TestPhysicsDt(t *testing.T) {
	p := PhysicsConfig{StepHz: 60}
	if dt := p.Dt(); dt != 1.0/60.0 {
		t.Errorf("Ожидался dt 1/60, получено %f", dt)
	}

	p.StepHz = 0
	if dt := p.Dt(); dt != 1.0/60.0 {
		t.Error("Нулевая частота должна давать дефолтный dt")
	}
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	os.Unsetenv("SAND_CONFIG")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load без файла не должен падать: %v", err)
	}
	if cfg.World.ChunksX != 7 {
		t.Error("Без файла должны применяться дефолты")
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sand.yml")

	data := []byte("world:\n  chunks_x: 3\n  chunks_y: 2\nwater:\n  max_dist: 4\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.World.ChunksX != 3 || cfg.World.ChunksY != 2 {
		t.Errorf("YAML должен переопределять размер мира, получено %dx%d", cfg.World.ChunksX, cfg.World.ChunksY)
	}
	if cfg.Water.MaxDist != 4 {
		t.Errorf("YAML должен переопределять воду, получено %d", cfg.Water.MaxDist)
	}
	// Незаданные поля остаются дефолтными
	if cfg.Water.SpreadFalloff != 1 {
		t.Error("Незаданные поля должны оставаться дефолтными")
	}
}

func TestLoadBadFile(t *testing.T) {
	if _, err := Load("/nonexistent/sand.yml"); err == nil {
		t.Error("Отсутствующий файл по явному пути должен давать ошибку")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	os.WriteFile(path, []byte("{{{"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("Битый YAML должен давать ошибку")
	}
}

func TestPortEnvFallback(t *testing.T) {
	s := ServerConfig{}

	os.Unsetenv("SAND_REST_PORT")
	if got := s.GetRESTPort(); got != 8088 {
		t.Errorf("Ожидался дефолтный порт 8088, получено %d", got)
	}

	os.Setenv("SAND_REST_PORT", "9000")
	defer os.Unsetenv("SAND_REST_PORT")
	if got := s.GetRESTPort(); got != 9000 {
		t.Errorf("ENV должен переопределять порт, получено %d", got)
	}

	s.RESTPort = 7000
	if got := s.GetRESTPort(); got != 7000 {
		t.Errorf("Конфиг имеет приоритет над ENV, получено %d", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.World.ChunksX = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Нулевой размер мира должен давать ошибку")
	}

	cfg = Default()
	cfg.Water.MaxDist = 0
	cfg.Water.SpreadFalloff = -1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Water.MaxDist != 1 || cfg.Water.SpreadFalloff != 1 {
		t.Error("Validate должен чинить некорректные значения воды")
	}
}
