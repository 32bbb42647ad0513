package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/livecss/internal/cache"
	"github.com/charlesng35/livecss/internal/editor"
	"github.com/charlesng35/livecss/internal/snippets"
)

func newTestHub(t *testing.T, withEditor bool) (*Hub, *snippets.Store, string) {
	t.Helper()

	var opts []Option
	var store *snippets.Store
	if withEditor {
		slot, err := snippets.NewCacheSlot(cache.NewMemoryStore(), "")
		require.NoError(t, err)
		store, err = snippets.NewStore(slot)
		require.NoError(t, err)
		opts = append(opts, WithEditor(store, editor.NewReducer(nil)))
	}

	hub := NewHub(opts...)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(r.URL.Query()["stream"], w, r)
	}))
	t.Cleanup(server.Close)

	return hub, store, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, event string) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == event {
			return msg
		}
	}
}

func TestHubRepliesToPing(t *testing.T) {
	_, _, url := newTestHub(t, false)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	msg := readEvent(t, conn, EventPong)
	require.Equal(t, EventPong, msg.Event)
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub, _, url := newTestHub(t, false)
	conn := dial(t, url+"?stream=snippets")

	require.Eventually(t, func() bool { return hub.Subscribers(StreamSnippets) == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.SnippetsChanged("save", "abc")
	msg := readEvent(t, conn, EventSnippetsChanged)
	require.Equal(t, StreamSnippets, msg.Stream)
	require.Equal(t, map[string]any{"op": "save", "id": "abc"}, msg.Data)
}

func TestHubSubscribeAndUnsubscribeActions(t *testing.T) {
	hub, _, url := newTestHub(t, false)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "streams": []string{"Snippets", "editor"}}))
	require.Eventually(t, func() bool { return hub.Subscribers(StreamSnippets) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Zero(t, hub.Subscribers(StreamEditor))

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "unsubscribe", "streams": []string{"snippets"}}))
	require.Eventually(t, func() bool { return hub.Subscribers(StreamSnippets) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubUnregistersClosedConnections(t *testing.T) {
	hub, _, url := newTestHub(t, false)
	conn := dial(t, url+"?stream=snippets")
	require.Eventually(t, func() bool { return hub.Subscribers(StreamSnippets) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers(StreamSnippets) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEditorSessionOverWebsocket(t *testing.T) {
	hub, store, url := newTestHub(t, true)
	conn := dial(t, url)
	watcher := dial(t, url+"?stream=snippets")
	require.Eventually(t, func() bool { return hub.Subscribers(StreamSnippets) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "state"}))
	rendered := readEvent(t, conn, EventPreviewRendered)
	require.Contains(t, rendered.Data.(map[string]any)["document"], "Welcome to Live CSS Playground!")
	state := readEvent(t, conn, EventState)
	require.Equal(t, editor.DefaultTitle, state.Data.(map[string]any)["title"])

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "edit_html", "value": "<p>live</p>"}))
	rendered = readEvent(t, conn, EventPreviewRendered)
	require.Contains(t, rendered.Data.(map[string]any)["document"], "<p>live</p>")

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "rename", "value": "Live"}))
	readEvent(t, conn, EventState)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "save"}))
	state = readEvent(t, conn, EventState)
	require.NotEmpty(t, state.Data.(map[string]any)["currentId"])

	changed := readEvent(t, watcher, EventSnippetsChanged)
	require.Equal(t, "save", changed.Data.(map[string]any)["op"])

	saved := store.List(context.Background())
	require.Len(t, saved, 1)
	require.Equal(t, "Live", saved[0].Title)
	require.Equal(t, "<p>live</p>", saved[0].HTML)
}

func TestEditorImportAndExportOverWebsocket(t *testing.T) {
	_, _, url := newTestHub(t, true)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "import", "payload": `{"title":"x","html":"<p></p>"}`}))
	notice := readEvent(t, conn, EventNotice)
	require.Equal(t, editor.LevelError, notice.Data.(map[string]any)["level"])
	require.Contains(t, notice.Data.(map[string]any)["message"], `missing field "css"`)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "import", "payload": map[string]any{"title": "Imported", "html": "<i>i</i>", "css": ""}}))
	state := readEvent(t, conn, EventState)
	require.Equal(t, "Imported", state.Data.(map[string]any)["title"])

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "export"}))
	download := readEvent(t, conn, EventDownload)
	require.Equal(t, "imported.json", download.Data.(map[string]any)["filename"])
	require.Contains(t, download.Data.(map[string]any)["content"], `"title": "Imported"`)
}

func TestEditorActionsDisabledWithoutStore(t *testing.T) {
	_, _, url := newTestHub(t, false)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "save"}))
	msg := readEvent(t, conn, EventError)
	require.Equal(t, StreamEditor, msg.Stream)
}

func TestUnsupportedActionReportsError(t *testing.T) {
	_, _, url := newTestHub(t, true)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "explode"}))
	msg := readEvent(t, conn, EventError)
	require.Contains(t, msg.Data.(map[string]any)["message"], "explode")
}

func TestSameOriginOrLoopback(t *testing.T) {
	cases := []struct {
		origin string
		host   string
		want   bool
	}{
		{origin: "", host: "example.com", want: true},
		{origin: "https://example.com", host: "example.com:443", want: true},
		{origin: "http://localhost:5173", host: "example.com", want: true},
		{origin: "http://127.0.0.1:3000", host: "example.com", want: true},
		{origin: "https://evil.test", host: "example.com", want: false},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/realtime", nil)
		req.Host = tc.host
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		require.Equal(t, tc.want, sameOriginOrLoopback(req), tc.origin)
	}
}
