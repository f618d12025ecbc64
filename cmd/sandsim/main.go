package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/annel0/sand-engine/internal/api"
	"github.com/annel0/sand-engine/internal/config"
	"github.com/annel0/sand-engine/internal/engine"
	"github.com/annel0/sand-engine/internal/logging"
	"github.com/annel0/sand-engine/internal/observability"
	"github.com/annel0/sand-engine/internal/worldgen"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV SAND_CONFIG)")
	benchmark := flag.Uint64("benchmark", 0, "выполнить n итераций бенчмарка и выйти")
	verbose := flag.Bool("v", false, "выводить DEBUG в консоль")
	flag.Parse()

	if err := logging.InitLogger(); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseLogger()

	if *verbose {
		logging.SetConsoleLevel(logging.DEBUG)
	}

	logging.LogInfo("🏜️  Запуск sand-engine...")
	logHostInfo()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.LogError("Ошибка загрузки конфигурации: %v", err)
		os.Exit(1)
	}

	// Телеметрия опциональна: без коллектора работаем дальше
	ctx := context.Background()
	shutdownTelemetry, err := observability.InitTelemetry(ctx, "sand-engine")
	if err != nil {
		logging.LogWarn("Телеметрия недоступна: %v", err)
		shutdownTelemetry = nil
	}

	eng, err := engine.New(cfg)
	if err != nil {
		logging.LogError("Ошибка создания движка: %v", err)
		os.Exit(1)
	}

	if cfg.Worldgen.Enabled {
		gen := worldgen.NewGenerator(cfg.World.Seed, cfg.Worldgen)
		gen.Generate(eng.Grid())
	}

	if *benchmark > 0 {
		eng.EnableBenchmark(*benchmark)
		logging.LogInfo("Режим бенчмарка: %d итераций", *benchmark)
	}

	server, err := api.NewServer(eng)
	if err != nil {
		logging.LogError("Ошибка создания REST сервера: %v", err)
		os.Exit(1)
	}

	go func() {
		if err := server.Run(cfg.Server.GetRESTPort()); err != nil {
			logging.LogError("REST сервер завершился: %v", err)
		}
	}()

	eng.Start()
	logging.LogInfo("✅ Симуляция запущена (мир %s)", eng.WorldID())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.LogInfo("Получен сигнал %v, останавливаемся...", sig)
	case <-eng.BenchmarkDone():
		logging.LogInfo("Бенчмарк завершен, останавливаемся...")
	}

	eng.Stop()
	printSummary(eng)

	if shutdownTelemetry != nil {
		if err := shutdownTelemetry(ctx); err != nil {
			logging.LogWarn("Ошибка остановки телеметрии: %v", err)
		}
	}

	logging.LogInfo("Остановлено.")
}

// logHostInfo пишет сводку по хосту: ядра и память
func logHostInfo() {
	counts, err := cpu.Counts(true)
	if err != nil {
		counts = runtime.NumCPU()
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		logging.LogInfo("Хост: %d логических ядер", counts)
		return
	}
	logging.LogInfo("Хост: %d логических ядер, память %d МБ (занято %.1f%%)",
		counts, vm.Total/1024/1024, vm.UsedPercent)
}

// printSummary выводит итоговую статистику прогона
func printSummary(eng *engine.Engine) {
	stats := eng.Stats()
	logging.LogInfo("Итого: %d шагов, %.1f SPS, тел: %d, форм террейна: %d, обломков: %d",
		stats.StepCount, stats.SPS, stats.DynamicBodies, stats.TerrainShapes, stats.Debris)

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		logging.LogInfo("CPU: %.1f%%", percents[0])
	}
}
