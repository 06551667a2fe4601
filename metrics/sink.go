package metrics

import "github.com/flowtest/flowtest/types"

// Sink feeds the Prometheus metrics through the same result fan-out as
// every other sink. It acknowledges the summary synchronously.
type Sink struct {
	ack func()
}

// NewSink creates a metrics sink.
func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) SetAcknowledgeHandler(ack func()) {
	s.ack = ack
}

func (s *Sink) AddPass(result *types.Result)   { RecordCase(result.Status()) }
func (s *Sink) AddFail(result *types.Result)   { RecordCase(result.Status()) }
func (s *Sink) AddError(result *types.Result)  { RecordCase(result.Status()) }
func (s *Sink) AddIgnore(result *types.Result) { RecordCase(result.Status()) }

func (s *Sink) ReportFinalStatistics(stats types.Stats) {
	RecordRun(stats)
	if s.ack != nil {
		s.ack()
	}
}
