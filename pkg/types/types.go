package types

// Priority is a job scheduling priority as assigned by the host scheduler
type Priority uint32

// DelayScore is the predictor score that marks a job for delay
const DelayScore int64 = 1

// Job is the read-only view of a job record owned by the resource manager
type Job struct {
	ID         uint32
	ScriptPath string   // Submitted batch script, empty when unknown
	Argv       []string // Argument vector, never used as a prediction key
}

// Feature returns the value the predictor is keyed on, the script path.
// Empty means no prediction is possible.
func (j *Job) Feature() string {
	if j == nil {
		return ""
	}
	return j.ScriptPath
}

// Decision is the priority adjustment chosen for a single job
type Decision string

const (
	DecisionDelay      Decision = "delay"      // halve the baseline priority
	DecisionNoDelay    Decision = "no_delay"   // keep the baseline priority
	DecisionUnresolved Decision = "unresolved" // predictor unavailable, keep the baseline
)

// OutcomeKind is the tagged result of a prediction
type OutcomeKind string

const (
	OutcomeDelay       OutcomeKind = "delay"
	OutcomeNoDelay     OutcomeKind = "no_delay"
	OutcomeUnavailable OutcomeKind = "unavailable"
)

// Outcome is what a predictor reports for one feature
type Outcome struct {
	Kind  OutcomeKind
	Score int64 // Raw score, only meaningful for Delay and NoDelay
	Err   error // Set when Kind is OutcomeUnavailable
}

// Delay returns an outcome requesting a delay
func Delay(score int64) Outcome {
	return Outcome{Kind: OutcomeDelay, Score: score}
}

// NoDelay returns an outcome keeping the priority
func NoDelay(score int64) Outcome {
	return Outcome{Kind: OutcomeNoDelay, Score: score}
}

// Unavailable returns an outcome for a failed prediction
func Unavailable(err error) Outcome {
	return Outcome{Kind: OutcomeUnavailable, Err: err}
}

// Decision maps the outcome onto a priority decision
func (o Outcome) Decision() Decision {
	switch o.Kind {
	case OutcomeDelay:
		return DecisionDelay
	case OutcomeNoDelay:
		return DecisionNoDelay
	default:
		return DecisionUnresolved
	}
}
