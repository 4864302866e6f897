package stats

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const ruler = "--------------------------------------------------------------------------------\n"

// WriteReport renders a human-readable report of the run.
func (stats *RuntimeStats) WriteReport(w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("IMPORT RUN\n")
	sb.WriteString(ruler)
	fmt.Fprintf(&sb, "  Run ID:          %s\n", stats.RunID)
	fmt.Fprintf(&sb, "  Start Time:      %s\n", stats.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "  End Time:        %s\n", stats.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&sb, "  Total Duration:  %s\n", stats.TotalElapsed.Round(time.Millisecond))
	fmt.Fprintf(&sb, "  Degraded:        %t\n", stats.Degraded)
	sb.WriteString("\n")

	if len(stats.Counts) > 0 {
		sb.WriteString("ROWS WRITTEN\n")
		sb.WriteString(ruler)
		keys := make([]string, 0, len(stats.Counts))
		for k := range stats.Counts {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %-16s %s\n", k+":", humanize.Comma(stats.Counts[k]))
		}
		sb.WriteString("\n")
	}

	sum := stats.Summary
	sb.WriteString("RESOURCES\n")
	sb.WriteString(ruler)
	fmt.Fprintf(&sb, "  Samples:         %d every %s\n", sum.SampleCount, sum.SampleInterval)
	fmt.Fprintf(&sb, "  Peak Heap:       %s\n", humanize.IBytes(sum.PeakHeapAlloc))
	fmt.Fprintf(&sb, "  Peak Sys:        %s\n", humanize.IBytes(sum.PeakSys))
	fmt.Fprintf(&sb, "  Peak RSS:        %s\n", humanize.IBytes(sum.PeakProcessRSS))
	fmt.Fprintf(&sb, "  Peak CPU:        %.2f%%\n", sum.PeakCPUPercent)
	fmt.Fprintf(&sb, "  Average CPU:     %.2f%%\n", sum.AvgCPUPercent)
	fmt.Fprintf(&sb, "  Peak Goroutines: %d\n", sum.PeakGoroutines)
	fmt.Fprintf(&sb, "  GC Cycles:       %d\n", sum.TotalGCCycles)
	sb.WriteString("\n")

	sb.WriteString("SAMPLES\n")
	sb.WriteString(ruler)

	// evenly spread over the run
	const maxSamples = 100
	samples := stats.Samples
	if len(samples) > maxSamples {
		samples = make([]Sample, 0, maxSamples)
		step := float64(len(stats.Samples)-1) / float64(maxSamples-1)
		for i := range maxSamples {
			samples = append(samples, stats.Samples[int(float64(i)*step)])
		}
		fmt.Fprintf(&sb, "  (showing %d of %d samples)\n\n", maxSamples, len(stats.Samples))
	}

	fmt.Fprintf(&sb, "%-12s %-12s %-12s %-12s %-8s %-10s\n", "Elapsed", "Heap", "RSS", "Sys", "CPU %", "Goroutines")
	for _, s := range samples {
		fmt.Fprintf(&sb, "%-12s %-12s %-12s %-12s %-8.1f %-10d\n",
			s.Elapsed.Round(100*time.Millisecond),
			humanize.IBytes(s.HeapAlloc),
			humanize.IBytes(s.ProcessRSSBytes),
			humanize.IBytes(s.Sys),
			s.CPUPercent,
			s.NumGoroutine,
		)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func (stats *RuntimeStats) SaveToFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer f.Close()

	if err := stats.WriteReport(f); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return f.Close()
}
