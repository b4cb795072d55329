package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq    int            `json:"seq"`
	Action string         `json:"action"`
	Event  string         `json:"event,omitempty"`
	Error  string         `json:"error,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// ArchiveSummary is the part of an archive record kept in the final state.
type ArchiveSummary struct {
	Event    string   `json:"event"`
	Entrants []string `json:"entrants"`
	Winners  []string `json:"winners"`
}

// FinalState captures the system after the last step.
type FinalState struct {
	Live          []string         `json:"live"`
	Stored        []string         `json:"stored"`
	Archived      []ArchiveSummary `json:"archived"`
	Announcements []string         `json:"announcements"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every step in order.
	Trace []TraceEvent `json:"trace"`

	// Final is the state after the last step.
	Final FinalState `json:"final"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record appends a step to the trace.
func (r *Result) record(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
