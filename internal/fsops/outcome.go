package fsops

// Outcome is the result of one targeted mutation inside a batch.
type Outcome struct {
	Path      string
	Succeeded bool
	Kind      Kind  // zero when Succeeded or when Err is not an *OpError
	Err       error // nil when Succeeded
}

// NewOutcome classifies err for path.
func NewOutcome(path string, err error) Outcome {
	if err == nil {
		return Outcome{Path: path, Succeeded: true}
	}
	return Outcome{Path: path, Kind: KindOf(err), Err: err}
}
