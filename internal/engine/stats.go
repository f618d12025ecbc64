package engine

import (
	"math"
	"sync/atomic"
)

// Stats снапшот счетчиков симуляции для хоста
type Stats struct {
	WorldID       string  `json:"world_id"`
	SPS           float64 `json:"sps"`
	StepCount     uint64  `json:"step_count"`
	DynamicBodies int     `json:"dynamic_bodies"`
	TerrainShapes int     `json:"terrain_shapes"`
	Debris        int     `json:"debris"`
	ChainCount    int     `json:"chain_count"`
	MeshMs        int64   `json:"mesh_ms"`
	PhysicsMs     int64   `json:"physics_ms"`
}

// counters lock-free счетчики, публикуемые потоком симуляции
// и читаемые хостом без блокировок
type counters struct {
	stepCount     atomic.Uint64
	spsBits       atomic.Uint64
	dynamicBodies atomic.Int64
	terrainShapes atomic.Int64
	debris        atomic.Int64
	chains        atomic.Int64
	meshMs        atomic.Int64
	physicsMs     atomic.Int64
}

func (c *counters) snapshot(worldID string) Stats {
	return Stats{
		WorldID:       worldID,
		SPS:           math.Float64frombits(c.spsBits.Load()),
		StepCount:     c.stepCount.Load(),
		DynamicBodies: int(c.dynamicBodies.Load()),
		TerrainShapes: int(c.terrainShapes.Load()),
		Debris:        int(c.debris.Load()),
		ChainCount:    int(c.chains.Load()),
		MeshMs:        c.meshMs.Load(),
		PhysicsMs:     c.physicsMs.Load(),
	}
}
