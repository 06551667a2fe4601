package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/flowtest/flowtest/types"
)

// ConsoleSink streams one line per case outcome and prints a summary table
// once the run finishes. It acknowledges the summary synchronously.
type ConsoleSink struct {
	out          io.Writer
	ack          func()
	currentClass string
}

// NewConsoleSink creates a console sink writing to out. A nil out selects
// stdout.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out}
}

func (s *ConsoleSink) SetAcknowledgeHandler(ack func()) {
	s.ack = ack
}

// SetCurrentTestClass implements the AdvancedSink contract.
func (s *ConsoleSink) SetCurrentTestClass(name string) {
	s.currentClass = name
	if name != "" {
		fmt.Fprintf(s.out, "%s\n", text.Bold.Sprint(name))
	}
}

func (s *ConsoleSink) AddPass(result *types.Result) {
	fmt.Fprintf(s.out, "  %s %s (%.2fs)\n",
		text.FgGreen.Sprint("✓"), result.Location.Method, result.Duration.Seconds())
}

func (s *ConsoleSink) AddFail(result *types.Result) {
	fmt.Fprintf(s.out, "  %s %s: %v\n",
		text.FgRed.Sprint("✗"), result.Location.Method, result.Detail())
}

func (s *ConsoleSink) AddError(result *types.Result) {
	fmt.Fprintf(s.out, "  %s %s: %v\n",
		text.FgHiRed.Sprint("!"), result.Location.Method, result.Detail())
}

func (s *ConsoleSink) AddIgnore(result *types.Result) {
	fmt.Fprintf(s.out, "  %s %s\n",
		text.FgYellow.Sprint("-"), result.Location.Method)
}

func (s *ConsoleSink) ReportFinalStatistics(stats types.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetTitle(fmt.Sprintf("Test Results (%.1fs)", stats.Elapsed.Seconds()))
	t.AppendHeader(table.Row{"Total", "Passed", "Failed", "Errored", "Ignored"})
	t.AppendRow(table.Row{stats.Total, stats.Passed, stats.Failed, stats.Errored, stats.Ignored})
	if stats.Success() {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}
	t.Render()

	if s.ack != nil {
		s.ack()
	}
}
