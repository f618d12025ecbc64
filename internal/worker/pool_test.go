package worker

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := NewPool(4)
	defer p.Stop()

	var counter atomic.Int64
	for i := 0; i < 1000; i++ {
		p.Submit(func() {
			counter.Add(1)
		})
	}
	p.WaitAll()

	if got := counter.Load(); got != 1000 {
		t.Errorf("Ожидалось 1000 выполненных задач, получено %d", got)
	}
}

func TestPoolWaitAllIsBarrier(t *testing.T) {
	p := NewPool(2)
	defer p.Stop()

	var running atomic.Int64
	for i := 0; i < 16; i++ {
		p.Submit(func() {
			running.Add(1)
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	p.WaitAll()

	if got := running.Load(); got != 0 {
		t.Errorf("После WaitAll не должно остаться работающих задач: %d", got)
	}
}

func TestPoolWaitAllOnEmptyPool(t *testing.T) {
	p := NewPool(1)
	defer p.Stop()

	done := make(chan struct{})
	go func() {
		p.WaitAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAll на пустом пуле не должен блокироваться")
	}
}

func TestPoolReusableAcrossPhases(t *testing.T) {
	p := NewPool(3)
	defer p.Stop()

	var counter atomic.Int64
	for phase := 0; phase < 4; phase++ {
		for i := 0; i < 50; i++ {
			p.Submit(func() { counter.Add(1) })
		}
		p.WaitAll()

		expected := int64((phase + 1) * 50)
		if got := counter.Load(); got != expected {
			t.Fatalf("Фаза %d: ожидалось %d задач, получено %d", phase, expected, got)
		}
	}
}

func TestPoolSubmitAfterStopIsNoop(t *testing.T) {
	p := NewPool(1)
	p.Stop()

	var counter atomic.Int64
	p.Submit(func() { counter.Add(1) })
	p.WaitAll()

	if counter.Load() != 0 {
		t.Error("Задачи после Stop должны игнорироваться")
	}
}

func TestPoolDefaultSize(t *testing.T) {
	p := NewPool(0)
	defer p.Stop()

	if p.Size() <= 0 {
		t.Error("Размер пула по умолчанию должен быть положительным")
	}
}
