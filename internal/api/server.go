package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/sand-engine/internal/engine"
	"github.com/annel0/sand-engine/internal/logging"
	"github.com/annel0/sand-engine/internal/sim"
)

// Server хостовый REST интерфейс движка: статистика, снапшот сетки,
// закраска, спаун ящиков и управление затвором шагов
type Server struct {
	eng     *engine.Engine
	router  *gin.Engine
	metrics *SimMetrics
	zenc    *zstd.Encoder
}

// NewServer создает REST сервер поверх движка
func NewServer(eng *engine.Engine) (*Server, error) {
	zenc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("инициализация zstd: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("sand-engine"))

	s := &Server{
		eng:     eng,
		router:  router,
		metrics: NewSimMetrics("sand_sim", eng),
		zenc:    zenc,
	}

	s.metrics.RegisterMetricsEndpoint(router)

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/stats", s.getStats)
		apiGroup.GET("/snapshot", s.getSnapshot)
		apiGroup.GET("/debris", s.getDebris)
		apiGroup.POST("/paint", s.postPaint)
		apiGroup.POST("/spawn", s.postSpawn)
		apiGroup.POST("/reset", s.postReset)
		apiGroup.POST("/mode", s.postMode)
		apiGroup.POST("/steps", s.postSteps)
	}

	return s, nil
}

// Run запускает HTTP сервер (блокирующий вызов)
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.LogInfo("REST API слушает %s", addr)
	return s.router.Run(addr)
}

// Router возвращает роутер (для тестов)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// parseMaterial разбирает имя материала из запроса
func parseMaterial(name string) (sim.MaterialID, bool) {
	switch name {
	case "air":
		return sim.Air, true
	case "stone":
		return sim.Stone, true
	case "sand":
		return sim.Sand, true
	case "water":
		return sim.Water, true
	case "wood":
		return sim.Wood, true
	}
	return sim.Air, false
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Stats())
}

// getSnapshot отдает материалы всех клеток, сжатые zstd.
// Размеры сетки возвращаются в заголовках.
func (s *Server) getSnapshot(c *gin.Context) {
	var w, h int
	s.eng.WithGrid(func(g *sim.Grid) {
		w = g.Width()
		h = g.Height()
	})

	buf := make([]uint8, w*h)
	s.eng.Snapshot(buf)

	compressed := s.zenc.EncodeAll(buf, nil)

	c.Header("X-Grid-Width", strconv.Itoa(w))
	c.Header("X-Grid-Height", strconv.Itoa(h))
	c.Header("Content-Encoding", "zstd")
	c.Data(http.StatusOK, "application/octet-stream", compressed)
}

func (s *Server) getDebris(c *gin.Context) {
	positions := s.eng.DebrisPositions()

	out := make(map[string][][2]float64, len(positions))
	for m, pts := range positions {
		arr := make([][2]float64, 0, len(pts))
		for _, p := range pts {
			arr = append(arr, [2]float64{p.X, p.Y})
		}
		out[m.String()] = arr
	}
	c.JSON(http.StatusOK, out)
}

type paintRequest struct {
	X        int    `json:"x" binding:"required"`
	Y        int    `json:"y" binding:"required"`
	Radius   int    `json:"radius"`
	Material string `json:"material" binding:"required"`
}

func (s *Server) postPaint(c *gin.Context) {
	var req paintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, ok := parseMaterial(req.Material)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неизвестный материал: " + req.Material})
		return
	}

	s.eng.PaintDisc(req.X, req.Y, req.Radius, m)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type spawnRequest struct {
	X        float64 `json:"x_m"`
	Y        float64 `json:"y_m"`
	Width    float64 `json:"width_m"`
	Height   float64 `json:"height_m"`
	Material string  `json:"material"`
}

func (s *Server) postSpawn(c *gin.Context) {
	var req spawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Width <= 0 {
		req.Width = 1.0
	}
	if req.Height <= 0 {
		req.Height = 1.0
	}

	m := sim.Wood
	if req.Material != "" {
		var ok bool
		if m, ok = parseMaterial(req.Material); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "неизвестный материал: " + req.Material})
			return
		}
	}

	id, err := s.eng.SpawnBox(req.X, req.Y, req.Width, req.Height, m)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"body_id": id})
}

func (s *Server) postReset(c *gin.Context) {
	s.eng.Reset()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type modeRequest struct {
	FixedSteps bool `json:"fixed_steps"`
}

func (s *Server) postMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.eng.SetFixedStepsMode(req.FixedSteps)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type stepsRequest struct {
	N int `json:"n" binding:"required"`
}

func (s *Server) postSteps(c *gin.Context) {
	var req stepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.N < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "бюджет шагов должен быть положительным"})
		return
	}

	s.eng.RequestSteps(req.N)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
