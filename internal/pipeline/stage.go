package pipeline

// Stage is the position of one request in the answer state machine.
// Transitions are strictly linear.
type Stage int

const (
	StageAwaitingQuery Stage = iota
	StageQueryReady
	StageAwaitingExecution
	StageExecutionDone
	StageAwaitingAnswer
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAwaitingQuery:
		return "awaiting_query"
	case StageQueryReady:
		return "query_ready"
	case StageAwaitingExecution:
		return "awaiting_execution"
	case StageExecutionDone:
		return "execution_done"
	case StageAwaitingAnswer:
		return "awaiting_answer"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}
