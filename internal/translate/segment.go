package translate

// SegmentState tracks a segment through one pipeline run.
type SegmentState int

const (
	SegmentPending SegmentState = iota
	SegmentInFlight
	SegmentDone
	SegmentFailed
)

func (s SegmentState) String() string {
	switch s {
	case SegmentPending:
		return "pending"
	case SegmentInFlight:
		return "in_flight"
	case SegmentDone:
		return "done"
	case SegmentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Segment is one structurally safe slice of the serialized document. It is
// owned by a single pipeline run; only the worker that claims it mutates
// Translated and State.
type Segment struct {
	Index      int
	RawText    string
	Translated string
	State      SegmentState
}

// EventKind identifies a progress notification.
type EventKind string

const (
	EventStart EventKind = "start"
	EventChunk EventKind = "chunk"
	EventDone  EventKind = "done"
	EventError EventKind = "error"
)

// ProgressEvent is an ephemeral per-segment notification consumed by the
// caller during streamed delivery. It is never persisted.
type ProgressEvent struct {
	Kind         EventKind `json:"kind"`
	SegmentCount int       `json:"segmentCount,omitempty"`
	Index        int       `json:"index,omitempty"`
	Text         string    `json:"text,omitempty"`
	Percentage   int       `json:"percentage,omitempty"`
	Message      string    `json:"message,omitempty"`
}
