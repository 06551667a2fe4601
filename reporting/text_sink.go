package reporting

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/flowtest/flowtest/types"
)

// TextSummarySink accumulates outcomes and writes a plain-text summary file
// when the run finishes. Error details are stripped of ANSI escape codes so
// the file stays readable outside a terminal. The acknowledgment is deferred
// until the file has been flushed to disk.
type TextSummarySink struct {
	path    string
	ack     func()
	lines   []string
	current string
}

// NewTextSummarySink creates a sink writing its summary to path.
func NewTextSummarySink(path string) *TextSummarySink {
	return &TextSummarySink{path: path}
}

func (s *TextSummarySink) SetAcknowledgeHandler(ack func()) {
	s.ack = ack
}

// SetCurrentTestClass implements the AdvancedSink contract.
func (s *TextSummarySink) SetCurrentTestClass(name string) {
	s.current = name
	if name != "" {
		s.lines = append(s.lines, name)
	}
}

func (s *TextSummarySink) add(marker string, result *types.Result) {
	line := fmt.Sprintf("  [%s] %s (%.2fs)", marker, result.Location.Method, result.Duration.Seconds())
	if detail := result.Detail(); detail != nil {
		line += ": " + stripansi.Strip(detail.Error())
	}
	s.lines = append(s.lines, line)
}

func (s *TextSummarySink) AddPass(result *types.Result)   { s.add("PASS", result) }
func (s *TextSummarySink) AddFail(result *types.Result)   { s.add("FAIL", result) }
func (s *TextSummarySink) AddError(result *types.Result)  { s.add("ERROR", result) }
func (s *TextSummarySink) AddIgnore(result *types.Result) { s.add("IGNORE", result) }

func (s *TextSummarySink) ReportFinalStatistics(stats types.Stats) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Test run finished at %s\n\n", time.Now().Format(time.RFC3339)))
	for _, line := range s.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(stats.String())
	b.WriteString("\n")

	// Write failure is not routed through the result pipeline; the run
	// still completes, so the barrier must be released either way.
	if err := os.WriteFile(s.path, []byte(b.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write test summary %s: %v\n", s.path, err)
	}
	if s.ack != nil {
		s.ack()
	}
}
