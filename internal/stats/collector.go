package stats

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// RuntimeStats holds the samples of one import run and what it produced.
type RuntimeStats struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalElapsed time.Duration
	Samples      []Sample
	Summary      Summary

	RunID    string
	Degraded bool
	// Counts is the number of rows sunk per entity type.
	Counts map[string]int64
}

type Sample struct {
	Elapsed time.Duration

	HeapAlloc       uint64
	HeapSys         uint64
	Sys             uint64
	NumGC           uint32
	ProcessRSSBytes uint64

	CPUPercent   float64
	SystemCPU    []float64
	NumGoroutine int
}

type Summary struct {
	PeakHeapAlloc  uint64
	PeakSys        uint64
	PeakProcessRSS uint64
	PeakCPUPercent float64
	AvgCPUPercent  float64
	PeakGoroutines int
	TotalGCCycles  uint32
	SampleCount    int
	SampleInterval time.Duration
}

// Collector samples process memory and CPU on a fixed interval.
type Collector struct {
	mu       sync.Mutex
	stats    RuntimeStats
	interval time.Duration
	proc     *process.Process

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}

	return &Collector{
		stats: RuntimeStats{
			Samples: make([]Sample, 0, 256),
		},
		interval: interval,
		proc:     proc,
		done:     make(chan struct{}),
	}, nil
}

// Start begins sampling until Stop is called or ctx is done.
func (c *Collector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.stats.StartTime = time.Now()

	go c.collect(ctx)
}

func (c *Collector) collect(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample(ctx)
	for {
		select {
		case <-ctx.Done():
			c.sample(context.Background())
			return
		case <-ticker.C:
			c.sample(ctx)
		}
	}
}

func (c *Collector) sample(ctx context.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	point := Sample{
		Elapsed:      time.Since(c.stats.StartTime),
		HeapAlloc:    memStats.HeapAlloc,
		HeapSys:      memStats.HeapSys,
		Sys:          memStats.Sys,
		NumGC:        memStats.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
	}

	if memInfo, err := c.proc.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
		point.ProcessRSSBytes = memInfo.RSS
	}
	if cpuPercent, err := c.proc.CPUPercentWithContext(ctx); err == nil {
		point.CPUPercent = cpuPercent
	}
	if systemCPU, err := cpu.PercentWithContext(ctx, 0, true); err == nil {
		point.SystemCPU = systemCPU
	}

	c.mu.Lock()
	c.stats.Samples = append(c.stats.Samples, point)
	c.mu.Unlock()
}

// Stop ends sampling and returns the collected stats.
func (c *Collector) Stop() RuntimeStats {
	c.cancel()
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.EndTime = time.Now()
	c.stats.TotalElapsed = c.stats.EndTime.Sub(c.stats.StartTime)
	c.stats.Summary = summarize(c.stats.Samples, c.interval)

	return c.stats
}

func summarize(samples []Sample, interval time.Duration) Summary {
	s := Summary{
		SampleCount:    len(samples),
		SampleInterval: interval,
	}
	if len(samples) == 0 {
		return s
	}

	var totalCPU float64
	for _, p := range samples {
		s.PeakHeapAlloc = max(s.PeakHeapAlloc, p.HeapAlloc)
		s.PeakSys = max(s.PeakSys, p.Sys)
		s.PeakProcessRSS = max(s.PeakProcessRSS, p.ProcessRSSBytes)
		s.PeakCPUPercent = max(s.PeakCPUPercent, p.CPUPercent)
		s.PeakGoroutines = max(s.PeakGoroutines, p.NumGoroutine)
		s.TotalGCCycles = max(s.TotalGCCycles, p.NumGC)
		totalCPU += p.CPUPercent
	}
	s.AvgCPUPercent = totalCPU / float64(len(samples))

	return s
}
