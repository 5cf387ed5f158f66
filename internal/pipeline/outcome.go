package pipeline

import (
	"time"

	"github.com/screenlens/screenlens/internal/ir"
	"github.com/screenlens/screenlens/pkg/runerr"
)

// Failure is one aggregated per-object failure of a run.
type Failure struct {
	Stage  string `json:"stage"` // extract | parse | persist
	Path   string `json:"path,omitempty"`
	Reason string `json:"reason"`
}

// Outcome summarizes a finished run. Failures are reported even when the
// run succeeds.
type Outcome struct {
	RunID       string        `json:"run_id"`
	Status      ir.RunStatus  `json:"status"`
	ExitCode    int           `json:"exit_code"`
	Objects     int           `json:"objects_n"`
	Events      int           `json:"events_n"`
	Functions   int           `json:"functions_n"`
	Relations   int           `json:"relations_n"`
	Sql         int           `json:"sql_n"`
	DataWindows int           `json:"dw_n"`
	Failures    []Failure     `json:"failures"`
	Elapsed     time.Duration `json:"elapsed"`
}

func exitCodeFor(status ir.RunStatus) int {
	switch status {
	case ir.RunOK:
		return runerr.ExitOK
	case ir.RunPartial:
		return runerr.ExitPartial
	default:
		return runerr.ExitFatal
	}
}
