package timeline

// StateKind is the phase of a bucket's load lifecycle.
type StateKind int

const (
	Idle StateKind = iota
	Fetching
	Success
	Failed
)

func (k StateKind) String() string {
	switch k {
	case Fetching:
		return "fetching"
	case Success:
		return "success"
	case Failed:
		return "error"
	default:
		return "idle"
	}
}

// State is the load state of one bucket.
//
//	Idle -> Fetching(direction) -> Success(endOfStream) | Failed(err)
//
// Direction is meaningful while Fetching and Err after Failed. EndOfStream
// is kept across Fetching and Failed; only a successful load changes it.
type State struct {
	Kind        StateKind
	Direction   Direction
	EndOfStream bool
	Err         error
}

// appendDone reports whether appending can no longer produce items.
func (s State) appendDone() bool {
	return s.EndOfStream
}
