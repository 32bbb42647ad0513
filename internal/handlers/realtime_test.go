package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/livecss/internal/handlers"
	"github.com/charlesng35/livecss/internal/handlers/testutil"
	"github.com/charlesng35/livecss/internal/realtime"
)

func startServer(t *testing.T, env *testutil.Env) (httpURL, wsURL string) {
	t.Helper()
	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)
	return server.URL, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialRealtime(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readRealtimeEvent(t *testing.T, conn *websocket.Conn, event string) realtime.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg realtime.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == event {
			return msg
		}
	}
}

func TestRealtimeBroadcastsHTTPWrites(t *testing.T) {
	env := testutil.NewEnv(t)
	httpURL, wsURL := startServer(t, env)

	watcher := dialRealtime(t, wsURL+"/api/realtime")
	require.Eventually(t, func() bool { return env.Hub.Subscribers(realtime.StreamSnippets) == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(httpURL+"/api/snippets", "application/json",
		bytes.NewBufferString(`{"title":"Shared","html":"<p></p>","css":""}`))
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg := readRealtimeEvent(t, watcher, realtime.EventSnippetsChanged)
	require.Equal(t, realtime.StreamSnippets, msg.Stream)
	data := msg.Data.(map[string]any)
	require.Equal(t, "save", data["op"])
	require.NotEmpty(t, data["id"])
}

func TestRealtimeEditorSessionThroughRouter(t *testing.T) {
	env := testutil.NewEnv(t)
	_, wsURL := startServer(t, env)

	conn := dialRealtime(t, wsURL+"/api/realtime?streams=snippets,editor")

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "edit_css", "value": "body { background: teal; }"}))
	for {
		rendered := readRealtimeEvent(t, conn, realtime.EventPreviewRendered)
		document, _ := rendered.Data.(map[string]any)["document"].(string)
		if strings.Contains(document, "background: teal") {
			break
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "save"}))
	state := readRealtimeEvent(t, conn, realtime.EventState)
	id, _ := state.Data.(map[string]any)["currentId"].(string)
	require.NotEmpty(t, id)

	stored := env.Store.List(context.Background())
	require.Len(t, stored, 1)
	require.Equal(t, id, stored[0].ID)
	require.Equal(t, "body { background: teal; }", stored[0].CSS)
}

func TestRealtimeHandlerWithoutHub(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := handlers.NewRealtimeHandler(nil)
	r := gin.New()
	r.GET("/api/realtime", handler.Stream)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/realtime", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRealtimeRejectsPlainHTTP(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/api/realtime", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
