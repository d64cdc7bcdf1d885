package realtime

type Event string

const (
	EventSessionStarted   Event = "SessionStarted"
	EventSessionAdvanced  Event = "SessionAdvanced"
	EventSessionCompleted Event = "SessionCompleted"
	EventJobCreated       Event = "JobCreated"
	EventJobProgress      Event = "JobProgress"
	EventJobFailed        Event = "JobFailed"
	EventJobDone          Event = "JobDone"
)

// Message is one realtime event. Channel is the id of the teacher that
// should receive it.
type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}
