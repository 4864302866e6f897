package pipeline

type State uint8

const (
	Idle State = iota
	RoadsPhase
	ConcurrentPhase
	// SequentialFallback reruns the whole import one entity type at a time
	// after a concurrent failure.
	SequentialFallback
	// Sequential is a run that was asked to be sequential from the start.
	Sequential
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RoadsPhase:
		return "roads_phase"
	case ConcurrentPhase:
		return "concurrent_phase"
	case SequentialFallback:
		return "sequential_fallback"
	case Sequential:
		return "sequential"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}
