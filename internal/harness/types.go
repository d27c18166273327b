package harness

// TraceEvent records one navigation step.
type TraceEvent struct {
	Step      int    `json:"step"`
	Direction string `json:"direction"`
	// From is empty for the first step.
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	// Visible lists the questions of the reduced survey in display order.
	Visible []string `json:"visible"`
	// Seed is set on steps that drew a layout.
	Seed string `json:"seed,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every navigation step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
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

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace.
func (r *Result) AddStep(event TraceEvent) {
	event.Step = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
}
