package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/sand-engine/internal/engine"
)

// SimMetrics публикует счетчики симуляции в Prometheus.
// Использование:
//
//	sm := api.NewSimMetrics("sand_sim", eng)
//	sm.RegisterMetricsEndpoint(r)
//
// Метрики:
// * <ns>_steps_total — counter
// * <ns>_sps, <ns>_dynamic_bodies, <ns>_terrain_shapes, <ns>_debris,
//   <ns>_chains, <ns>_mesh_ms, <ns>_physics_ms — gauges
type SimMetrics struct {
	collectors []prometheus.Collector
}

// NewSimMetrics создает коллекторы поверх снапшотов движка и регистрирует
// их в дефолтном регистре
func NewSimMetrics(namespace string, eng *engine.Engine) *SimMetrics {
	gauge := func(name, help string, get func(engine.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return get(eng.Stats()) })
	}

	sm := &SimMetrics{
		collectors: []prometheus.Collector{
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Общее число шагов симуляции.",
			}, func() float64 { return float64(eng.Stats().StepCount) }),
			gauge("sps", "Шагов симуляции в секунду.", func(s engine.Stats) float64 { return s.SPS }),
			gauge("dynamic_bodies", "Количество динамических тел.", func(s engine.Stats) float64 { return float64(s.DynamicBodies) }),
			gauge("terrain_shapes", "Количество форм на теле террейна.", func(s engine.Stats) float64 { return float64(s.TerrainShapes) }),
			gauge("debris", "Количество живых обломков.", func(s engine.Stats) float64 { return float64(s.Debris) }),
			gauge("chains", "Количество цепочек границы.", func(s engine.Stats) float64 { return float64(s.ChainCount) }),
			gauge("mesh_ms", "Длительность построения сетки террейна, мс.", func(s engine.Stats) float64 { return float64(s.MeshMs) }),
			gauge("physics_ms", "Длительность обновления физики, мс.", func(s engine.Stats) float64 { return float64(s.PhysicsMs) }),
		},
	}

	prometheus.MustRegister(sm.collectors...)
	return sm
}

// RegisterMetricsEndpoint добавляет маршрут /metrics на роутер
func (sm *SimMetrics) RegisterMetricsEndpoint(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
