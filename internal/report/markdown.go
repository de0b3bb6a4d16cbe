package report

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/shelfmap/shelfmap/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run statistics in Markdown format.
func (w *MarkdownWriter) Write(stats *model.RunStats) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, stats)
	w.writeSummary(md, stats)
	w.writeStatusBreakdown(md, stats)
	w.writeDepthBreakdown(md, stats)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, stats *model.RunStats) {
	md.H1("Category Discovery Report")
	md.PlainText("")

	mode := "Fresh run"
	if stats.Resumed {
		mode = "Resumed from checkpoint"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + stats.RunID + "`"},
			{"Started", stats.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", stats.Duration().Round(time.Millisecond).String()},
			{"Mode", mode},
		},
	})
	md.PlainText("")
}

// writeSummary writes the crawl counters and a status pie chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, stats *model.RunStats) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Categories", strconv.Itoa(stats.TotalNodes())},
			{"Processed", strconv.Itoa(stats.Processed())},
			{"Failed", strconv.Itoa(stats.Failed())},
			{"Tasks completed", strconv.Itoa(stats.TasksCompleted)},
			{"Retries", strconv.Itoa(stats.Retries)},
			{"Challenge waits", strconv.Itoa(stats.ChallengeWaits)},
			{"Depth limited", strconv.Itoa(stats.DepthLimited)},
		},
	})
	md.PlainText("")

	if stats.TotalNodes() > 0 {
		w.writePieChart(md, stats)
	}
	w.writeAlert(md, stats)
}

// writePieChart writes a mermaid pie chart for the status distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, stats *model.RunStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Node Status Distribution"),
		piechart.WithShowData(true),
	)

	if n := stats.ByStatus[model.StatusProcessedHasChildren]; n > 0 {
		chart.LabelAndIntValue("Has children", uint64(n))
	}
	if n := stats.ByStatus[model.StatusProcessedLeaf]; n > 0 {
		chart.LabelAndIntValue("Leaf", uint64(n))
	}
	if n := stats.ByStatus[model.StatusFailedPermanent]; n > 0 {
		chart.LabelAndIntValue("Failed", uint64(n))
	}
	if n := stats.ByStatus[model.StatusPending]; n > 0 {
		chart.LabelAndIntValue("Pending", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert reflecting the health of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, stats *model.RunStats) {
	switch {
	case stats.Seeds > 0 && stats.SeedFailureRate() >= 0.5:
		md.Warning("More than half the seeds failed permanently. The results are likely incomplete; check for anti-bot blocking.")
	case stats.Failed() > 0:
		md.Note(strconv.Itoa(stats.Failed()) + " categories failed permanently and are excluded from downstream consumers.")
	default:
		md.Note("All discovered categories were processed.")
	}
	md.PlainText("")
}

// writeStatusBreakdown writes node counts per status.
func (w *MarkdownWriter) writeStatusBreakdown(md *markdown.Markdown, stats *model.RunStats) {
	if len(stats.ByStatus) == 0 {
		return
	}

	md.H2("Nodes by Status")
	md.PlainText("")

	order := []model.Status{
		model.StatusPending,
		model.StatusInProgress,
		model.StatusProcessedLeaf,
		model.StatusProcessedHasChildren,
		model.StatusFailedPermanent,
	}
	rows := make([][]string, 0, len(order))
	for _, status := range order {
		count, ok := stats.ByStatus[status]
		if !ok {
			continue
		}
		rows = append(rows, []string{"`" + string(status) + "`", strconv.Itoa(count)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDepthBreakdown writes node counts per depth.
func (w *MarkdownWriter) writeDepthBreakdown(md *markdown.Markdown, stats *model.RunStats) {
	if len(stats.ByDepth) == 0 {
		return
	}

	md.H2("Nodes by Depth")
	md.PlainText("")

	depths := make([]int, 0, len(stats.ByDepth))
	for depth := range stats.ByDepth {
		depths = append(depths, depth)
	}
	sort.Ints(depths)

	rows := make([][]string, 0, len(depths))
	for _, depth := range depths {
		rows = append(rows, []string{strconv.Itoa(depth), strconv.Itoa(stats.ByDepth[depth])})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Count"},
		Rows:   rows,
	})
}
