package reporting

import "github.com/flowtest/flowtest/types"

// Collector is an in-memory sink. The lifecycle service uses it to build
// the end-of-run results table, and tests use it to observe sink traffic.
type Collector struct {
	ack func()

	Classes []string // class activations, in order
	Results []*types.Result
	Stats   types.Stats
	Reports int // number of ReportFinalStatistics calls received
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) SetAcknowledgeHandler(ack func()) {
	c.ack = ack
}

// SetCurrentTestClass implements the AdvancedSink contract.
func (c *Collector) SetCurrentTestClass(name string) {
	c.Classes = append(c.Classes, name)
}

func (c *Collector) AddPass(result *types.Result)   { c.Results = append(c.Results, result) }
func (c *Collector) AddFail(result *types.Result)   { c.Results = append(c.Results, result) }
func (c *Collector) AddError(result *types.Result)  { c.Results = append(c.Results, result) }
func (c *Collector) AddIgnore(result *types.Result) { c.Results = append(c.Results, result) }

func (c *Collector) ReportFinalStatistics(stats types.Stats) {
	c.Stats = stats
	c.Reports++
	if c.ack != nil {
		c.ack()
	}
}

// Reset clears collected state between runs.
func (c *Collector) Reset() {
	c.Classes = nil
	c.Results = nil
	c.Stats = types.Stats{}
	c.Reports = 0
}
