package types

import (
	"fmt"
	"time"
)

// Stats aggregates the outcome counts of one run. Ignored cases are not
// counted in Total, so Total == Passed + Failed + Errored.
type Stats struct {
	Total   int
	Passed  int
	Failed  int
	Errored int
	Ignored int
	Elapsed time.Duration
}

// Success reports whether every executed case passed.
func (s Stats) Success() bool {
	return s.Passed == s.Total
}

func (s Stats) String() string {
	return fmt.Sprintf("%d run: %d passed, %d failed, %d errored, %d ignored (%.1fs)",
		s.Total, s.Passed, s.Failed, s.Errored, s.Ignored, s.Elapsed.Seconds())
}
