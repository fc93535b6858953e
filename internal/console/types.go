package console

// EndReason says why a Reader stopped.
type EndReason uint8

const (
	// EndOfStream means the source reported io.EOF.
	EndOfStream EndReason = iota + 1
	// Cancelled means Cancel was called or the run context ended.
	Cancelled
	// Failed means the source or the decoder returned an error.
	Failed
)

func (r EndReason) String() string {
	switch r {
	case EndOfStream:
		return "end of stream"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "running"
	}
}

// Result is the outcome of one Run.
type Result struct {
	Reason EndReason
	Err    error // set only when Reason == Failed
}
