package types

// Outcome is the per-topic result of one pipeline pass.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeReady
	OutcomeEmpty         // search returned no candidates
	OutcomeResolveFailed // search errored
	OutcomeFetchFailed   // summary fetch errored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeEmpty:
		return "empty"
	case OutcomeResolveFailed:
		return "resolve-failed"
	case OutcomeFetchFailed:
		return "fetch-failed"
	default:
		return "pending"
	}
}

// Failed reports whether the outcome is a network/client failure.
func (o Outcome) Failed() bool {
	return o == OutcomeResolveFailed || o == OutcomeFetchFailed
}

// Result is what the pipeline reports for a single active topic.
type Result struct {
	Gen        uint64 // workspace generation the run was started in
	Index      int    // topic index
	Topic      string
	Outcome    Outcome
	Candidates []string // best match first; only set when Outcome is ready
	Title      string   // title the summary was fetched for
	Summary    string
	Err        error
}

// Reresolved is the result of fetching a summary for a user-chosen candidate.
type Reresolved struct {
	Gen     uint64
	Seq     uint64 // pick sequence; only the latest pick per topic applies
	Index   int // topic index the request was issued for
	Title   string
	Summary string
	Err     error
}

// Stats holds aggregate counts over a workspace.
type Stats struct {
	Topics  int
	Active  int
	Ready   int
	Empty   int
	Failed  int
	Pending int
}
