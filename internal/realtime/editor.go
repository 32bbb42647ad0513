package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/charlesng35/livecss/internal/editor"
)

type previewData struct {
	Document string `json:"document"`
}

type downloadData struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type noticeData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// handleEditorAction maps an editor action onto the connection's session, creating it on first use.
func (c *connection) handleEditorAction(ctx context.Context, action string, msg clientMessage) {
	if c.hub.store == nil {
		c.reply(Message{Stream: StreamEditor, Event: EventError, Data: map[string]string{"message": "editor sessions are disabled"}})
		return
	}

	var event editor.Event
	switch action {
	case "edit_html":
		event = editor.EditHTML{Value: msg.Value}
	case "edit_css":
		event = editor.EditCSS{Value: msg.Value}
	case "rename":
		event = editor.Rename{Title: msg.Value}
	case "toggle_auto_update":
		event = editor.ToggleAutoUpdate{}
	case "toggle_theme":
		event = editor.ToggleTheme{}
	case "refresh":
		event = editor.Refresh{}
	case "save":
		event = editor.Save{}
	case "load":
		event = editor.Load{ID: msg.ID}
	case "delete":
		event = editor.Delete{ID: msg.ID}
	case "reset":
		event = editor.Reset{}
	case "export":
		event = editor.Export{}
	case "export_snippet":
		event = editor.ExportSnippet{ID: msg.ID}
	case "import":
		event = editor.Import{Payload: importPayload(msg)}
	case "reload", "state":
	default:
		c.hub.log.Debug("unsupported action", zap.String("action", action))
		c.reply(Message{Stream: StreamEditor, Event: EventError, Data: map[string]string{"message": "unsupported action " + action}})
		return
	}

	created, err := c.ensureSession(ctx)
	if err != nil {
		c.hub.log.Error("editor session failed", zap.Error(err))
		c.reply(Message{Stream: StreamEditor, Event: EventError, Data: map[string]string{"message": "editor session unavailable"}})
		return
	}

	var effects []editor.Effect
	switch {
	case action == "reload":
		effects = c.session.Reload(ctx)
	case event != nil:
		effects = c.session.Dispatch(ctx, event)
	}
	c.emit(effects)

	if created || (action != "edit_html" && action != "edit_css") {
		c.reply(Message{Stream: StreamEditor, Event: EventState, Data: c.session.State()})
	}
}

func (c *connection) ensureSession(ctx context.Context) (bool, error) {
	if c.session != nil {
		return false, nil
	}

	opts := []editor.SessionOption{editor.WithChangeListener(c.hub.SnippetsChanged)}
	if c.hub.reducer != nil {
		opts = append(opts, editor.WithReducer(c.hub.reducer))
	}
	session, initial, err := editor.NewSession(ctx, c.hub.store, opts...)
	if err != nil {
		return false, err
	}
	c.session = session
	c.emit(initial)
	return true, nil
}

func (c *connection) emit(effects []editor.Effect) {
	for _, effect := range effects {
		switch eff := effect.(type) {
		case editor.RenderPreview:
			c.reply(Message{Stream: StreamEditor, Event: EventPreviewRendered, Data: previewData{Document: eff.Document}})
		case editor.Download:
			c.reply(Message{Stream: StreamEditor, Event: EventDownload, Data: downloadData{
				Filename:    eff.Filename,
				ContentType: "application/json",
				Content:     string(eff.Body),
			}})
		case editor.Notify:
			c.reply(Message{Stream: StreamEditor, Event: EventNotice, Data: noticeData{Level: eff.Level, Message: eff.Message}})
		}
	}
}

// importPayload accepts the document either as a JSON string holding the file text or inline.
func importPayload(msg clientMessage) []byte {
	if len(msg.Payload) == 0 {
		return []byte(msg.Value)
	}
	var text string
	if err := json.Unmarshal(msg.Payload, &text); err == nil {
		return []byte(text)
	}
	return msg.Payload
}
