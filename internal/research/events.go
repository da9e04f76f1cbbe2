package research

// EventKind discriminates the payloads streamed to the client.
type EventKind string

const (
	// EventThought is a progress notice emitted while research is underway
	EventThought EventKind = "thought"
	// EventMessage carries the final answer
	EventMessage EventKind = "message"
	// EventError carries a user-facing error in place of an answer
	EventError EventKind = "error"
)

// Event is one frame of the streamed response.
type Event struct {
	Type    EventKind `json:"type"`
	Content string    `json:"content"`
}

// EventSink receives events as they are produced. Implementations must not
// block for long; the agent calls the sink inline between model invocations.
type EventSink func(Event)
