// Package reporting defines the sink contract the engine fans results out
// to, and a set of concrete sinks: console, text summary, JUnit-style XML
// and an in-memory collector.
package reporting

import "github.com/flowtest/flowtest/types"

// ResultSink consumes per-case outcomes and the final run summary.
//
// The engine hands every sink an acknowledgment callback at registration
// time. After a sink has fully handled ReportFinalStatistics (which it may
// defer, e.g. to flush output) it must invoke that callback exactly once
// per run; the run-level completion callback fires only once every
// registered sink has acknowledged.
type ResultSink interface {
	AddPass(result *types.Result)
	AddFail(result *types.Result)
	AddError(result *types.Result)
	AddIgnore(result *types.Result)
	ReportFinalStatistics(stats types.Stats)
	SetAcknowledgeHandler(ack func())
}

// AdvancedSink is the extended capability for sinks that track the active
// test class. The engine calls SetCurrentTestClass with the class name when
// a class becomes active, and with the empty string before the final
// summary.
type AdvancedSink interface {
	ResultSink
	SetCurrentTestClass(name string)
}
