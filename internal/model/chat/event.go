package chat

// Event marks one stage of answering a single query. Stages are emitted in
// order: received, processing, then either not_found or
// (table_response, replying, text_response).
type Event string

const (
	EventAudioReceived Event = "audio_received"
	EventTextReceived  Event = "text_received"
	EventProcessing    Event = "processing"
	EventReplying      Event = "replying"
	EventNotFound      Event = "not_found"
)

// Terminal reports whether no further stage follows e.
func (e Event) Terminal() bool {
	return e == EventNotFound
}

// EventDelivery wraps a lifecycle event for the broker.
func EventDelivery(sessionID string, e Event) Delivery {
	return Delivery{SessionID: sessionID, Kind: KindEvent, Content: string(e)}
}
