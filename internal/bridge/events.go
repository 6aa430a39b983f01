package bridge

// inboundEvent is one browser → bridge message, tagged by Type.
// Known types: "snapshot", "voice", "ping".
type inboundEvent struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// outboundEvent is one bridge → browser message, tagged by Type.
// Known types: "connected", "processing", "snapshot_saved", "voice",
// "message", "video", "pong", "error".
type outboundEvent struct {
	Type      string  `json:"type"`
	Message   string  `json:"message,omitempty"`
	Text      string  `json:"text,omitempty"`
	AudioURL  string  `json:"audioUrl,omitempty"`
	URL       string  `json:"url,omitempty"`
	Character string  `json:"character,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Filepath  string  `json:"filepath,omitempty"`
}

func connectedEvent() outboundEvent {
	return outboundEvent{Type: "connected", Message: "bridge ready"}
}

func processingEvent() outboundEvent {
	return outboundEvent{Type: "processing", Message: "thinking..."}
}

func snapshotSavedEvent(path string) outboundEvent {
	return outboundEvent{Type: "snapshot_saved", Filepath: path}
}

func voiceEvent(text, audioURL string) outboundEvent {
	return outboundEvent{Type: "voice", Text: text, AudioURL: audioURL}
}

func textEvent(text string) outboundEvent {
	return outboundEvent{Type: "message", Text: text}
}

func videoEvent(url string) outboundEvent {
	return outboundEvent{Type: "video", URL: url}
}

func pongEvent() outboundEvent {
	return outboundEvent{Type: "pong"}
}

func errorEvent(message string) outboundEvent {
	return outboundEvent{Type: "error", Message: message}
}
