package realtime

// Named realtime streams.
const (
	// StreamSnippets carries snippets.changed broadcasts to every subscriber.
	StreamSnippets = "snippets"
	// StreamEditor carries a connection's own editor session output. It is never broadcast.
	StreamEditor = "editor"
)

// Outgoing event names.
const (
	EventSnippetsChanged = "snippets.changed"
	EventPreviewRendered = "preview.rendered"
	EventDownload        = "download"
	EventNotice          = "notice"
	EventState           = "state"
	EventPong            = "pong"
	EventError           = "error"
)
