package reporting

import (
	"encoding/xml"
	"fmt"
	"os"

	"github.com/flowtest/flowtest/types"
)

// XMLSink writes a JUnit-style XML report when the run finishes.
type XMLSink struct {
	path  string
	ack   func()
	cases []xmlCase
}

type xmlReport struct {
	XMLName  xml.Name  `xml:"testsuite"`
	Tests    int       `xml:"tests,attr"`
	Failures int       `xml:"failures,attr"`
	Errors   int       `xml:"errors,attr"`
	Skipped  int       `xml:"skipped,attr"`
	Time     float64   `xml:"time,attr"`
	Cases    []xmlCase `xml:"testcase"`
}

type xmlCase struct {
	ClassName string      `xml:"classname,attr"`
	Name      string      `xml:"name,attr"`
	Time      float64     `xml:"time,attr"`
	Failure   *xmlMessage `xml:"failure,omitempty"`
	Error     *xmlMessage `xml:"error,omitempty"`
	Skipped   *xmlMessage `xml:"skipped,omitempty"`
}

type xmlMessage struct {
	Message string `xml:"message,attr"`
}

// NewXMLSink creates a sink writing a JUnit-style report to path.
func NewXMLSink(path string) *XMLSink {
	return &XMLSink{path: path}
}

func (s *XMLSink) SetAcknowledgeHandler(ack func()) {
	s.ack = ack
}

func (s *XMLSink) record(result *types.Result) xmlCase {
	return xmlCase{
		ClassName: result.Location.Class,
		Name:      result.Location.Method,
		Time:      result.Duration.Seconds(),
	}
}

func (s *XMLSink) AddPass(result *types.Result) {
	s.cases = append(s.cases, s.record(result))
}

func (s *XMLSink) AddFail(result *types.Result) {
	c := s.record(result)
	c.Failure = &xmlMessage{Message: result.Detail().Error()}
	s.cases = append(s.cases, c)
}

func (s *XMLSink) AddError(result *types.Result) {
	c := s.record(result)
	c.Error = &xmlMessage{Message: result.Detail().Error()}
	s.cases = append(s.cases, c)
}

func (s *XMLSink) AddIgnore(result *types.Result) {
	c := s.record(result)
	c.Skipped = &xmlMessage{Message: "ignored"}
	s.cases = append(s.cases, c)
}

func (s *XMLSink) ReportFinalStatistics(stats types.Stats) {
	report := xmlReport{
		Tests:    stats.Total,
		Failures: stats.Failed,
		Errors:   stats.Errored,
		Skipped:  stats.Ignored,
		Time:     stats.Elapsed.Seconds(),
		Cases:    s.cases,
	}
	data, err := xml.MarshalIndent(report, "", "  ")
	if err == nil {
		err = os.WriteFile(s.path, append([]byte(xml.Header), data...), 0644)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write XML report %s: %v\n", s.path, err)
	}
	if s.ack != nil {
		s.ack()
	}
}
