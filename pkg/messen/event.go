package messen

// Event is a push notification delivered by Client.Listen. It is either a
// MessageEvent or a ThreadEvent.
type Event interface {
	event()
}

// MessageEvent reports a message arriving in a thread.
type MessageEvent struct {
	Message Message
	Thread  Thread
	// Self is true for the echo of a message the session user sent.
	Self bool
}

// ThreadKind describes what changed in a ThreadEvent.
type ThreadKind string

const (
	ThreadCreated ThreadKind = "created"
	ThreadRenamed ThreadKind = "renamed"
	// ThreadUpdated covers participant and other metadata changes.
	ThreadUpdated ThreadKind = "updated"
)

// ThreadEvent reports a change to a thread's metadata.
type ThreadEvent struct {
	Kind   ThreadKind
	Thread Thread
	// Actor made the change. It is the zero User when the backend does not
	// say.
	Actor User
}

func (MessageEvent) event() {}
func (ThreadEvent) event()  {}
