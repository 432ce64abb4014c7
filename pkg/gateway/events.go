package gateway

import "encoding/json"

// Event is one decoded dispatch delivered to the event sink.
// Data is the raw payload; consumers decode the event types they care about.
type Event struct {
	Shard ShardID
	Name  string
	Seq   int64
	Data  json.RawMessage
}

// EventSink receives decoded events from connected shards.
//
// HandleEvent is called from the owning shard's read goroutine, so a slow
// sink backpressures that shard (and only that shard). Sinks that need to do
// real work should hand the event off to their own queue.
type EventSink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(Event)

// HandleEvent calls f(e).
func (f SinkFunc) HandleEvent(e Event) {
	f(e)
}
