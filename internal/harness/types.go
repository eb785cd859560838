package harness

// StepOutcome records what happened to one executed statement.
type StepOutcome struct {
	// Statement is the source text that ran.
	Statement string `json:"-"`

	// Kind and Table identify the compiled statement. Empty when
	// compilation failed.
	Kind  string `json:"kind,omitempty"`
	Table string `json:"table,omitempty"`

	// Rows is the row count: rows affected for mutations, rows
	// returned for queries.
	Rows int64 `json:"rows"`

	// Error holds the failure message, if any.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: every expect clause
	// matched and every assertion held.
	Pass bool `json:"pass"`

	// Steps contains one outcome per main-flow step, in order.
	Steps []StepOutcome `json:"steps"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
