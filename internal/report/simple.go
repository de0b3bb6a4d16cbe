package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shelfmap/shelfmap/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run statistics in human-readable format.
func (w *SimpleWriter) Write(stats *model.RunStats) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, stats)
	w.writeSummary(&sb, stats)
	w.writeStatusBreakdown(&sb, stats)
	w.writeDepthBreakdown(&sb, stats)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, stats *model.RunStats) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                    CATEGORY DISCOVERY REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Run ID:       %s\n", stats.RunID))
	sb.WriteString(fmt.Sprintf("Started:      %s\n", stats.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration:     %s\n", stats.Duration().Round(time.Millisecond)))
	if stats.Resumed {
		sb.WriteString("Mode:         Resumed from checkpoint\n")
	} else {
		sb.WriteString("Mode:         Fresh run\n")
	}
	sb.WriteString("\n")
}

// writeSummary writes the crawl counters.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, stats *model.RunStats) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Categories:       %d\n", stats.TotalNodes()))
	sb.WriteString(fmt.Sprintf("  Processed:        %d\n", stats.Processed()))
	sb.WriteString(fmt.Sprintf("  Failed:           %d\n", stats.Failed()))
	sb.WriteString(fmt.Sprintf("  Tasks completed:  %d\n", stats.TasksCompleted))
	sb.WriteString(fmt.Sprintf("  Retries:          %d\n", stats.Retries))
	sb.WriteString(fmt.Sprintf("  Challenge waits:  %d\n", stats.ChallengeWaits))
	sb.WriteString(fmt.Sprintf("  Depth limited:    %d\n", stats.DepthLimited))
	if stats.Seeds > 0 {
		sb.WriteString(fmt.Sprintf("  Seed failures:    %d/%d (%.0f%%)\n",
			stats.FailedSeeds, stats.Seeds, stats.SeedFailureRate()*100))
	}
	sb.WriteString("\n")
}

// writeStatusBreakdown writes node counts per status.
func (w *SimpleWriter) writeStatusBreakdown(sb *strings.Builder, stats *model.RunStats) {
	if len(stats.ByStatus) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("NODES BY STATUS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	// Fixed lifecycle order reads better than map order.
	order := []model.Status{
		model.StatusPending,
		model.StatusInProgress,
		model.StatusProcessedLeaf,
		model.StatusProcessedHasChildren,
		model.StatusFailedPermanent,
	}
	for _, status := range order {
		count, ok := stats.ByStatus[status]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-24s %d\n", string(status)+":", count))
	}
	sb.WriteString("\n")
}

// writeDepthBreakdown writes node counts per depth.
func (w *SimpleWriter) writeDepthBreakdown(sb *strings.Builder, stats *model.RunStats) {
	if len(stats.ByDepth) == 0 {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("NODES BY DEPTH\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	depths := make([]int, 0, len(stats.ByDepth))
	for depth := range stats.ByDepth {
		depths = append(depths, depth)
	}
	sort.Ints(depths)

	for _, depth := range depths {
		sb.WriteString(fmt.Sprintf("  depth %-2d  %d\n", depth, stats.ByDepth[depth]))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by shelfmap\n")
	sb.WriteString("https://github.com/shelfmap/shelfmap\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
