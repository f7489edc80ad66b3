package conversation

// EventType identifies what changed in a controller.
type EventType int

const (
	// EventAppended carries one message added to the end of the log.
	EventAppended EventType = iota
	// EventReplaced carries the whole log after a reset.
	EventReplaced
	// EventFlags carries new input flags.
	EventFlags
)

func (t EventType) String() string {
	switch t {
	case EventAppended:
		return "appended"
	case EventReplaced:
		return "replaced"
	case EventFlags:
		return "flags"
	default:
		return "unknown"
	}
}

// Event reports a change of controller state to the presentation layer.
type Event struct {
	Type     EventType
	Message  ChatMessage   // EventAppended
	Messages []ChatMessage // EventReplaced
	Flags    Flags         // EventFlags
}

// Apply folds e into a copy of log and returns the result, so a presentation
// layer can keep its own view of the log from events alone.
func (e Event) Apply(log []ChatMessage) []ChatMessage {
	switch e.Type {
	case EventAppended:
		out := make([]ChatMessage, len(log), len(log)+1)
		copy(out, log)
		return append(out, e.Message)
	case EventReplaced:
		out := make([]ChatMessage, len(e.Messages))
		copy(out, e.Messages)
		return out
	default:
		return log
	}
}
