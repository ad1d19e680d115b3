package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// echoUpstream records the first frame and then echoes everything back.
func echoUpstream(t *testing.T, first chan<- []byte, gotQuery chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "realtime=v1", r.Header.Get("OpenAI-Beta"))
		gotQuery <- r.URL.Query().Get("model")

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		first <- data

		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
}

func TestSessionUpdate(t *testing.T) {
	data, err := SessionUpdate(Session{Instructions: "be kind", Voice: "alloy"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "session.update", got["type"])
	session := got["session"].(map[string]any)
	assert.Equal(t, "be kind", session["instructions"])
	assert.Equal(t, "alloy", session["voice"])

	data, err = SessionUpdate(Session{Instructions: "x"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "voice")
}

func TestRelay_PumpsBothWays(t *testing.T) {
	first := make(chan []byte, 1)
	gotQuery := make(chan string, 1)
	upstream := echoUpstream(t, first, gotQuery)
	defer upstream.Close()

	relay := NewRelay(wsURL(upstream.URL)+"/v1/realtime", "sk-test")
	served := make(chan error, 1)
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served <- relay.Serve(w, r, Session{
			UserID: "u1", AgentID: "a1", Model: "gpt-4o-realtime-preview",
			Instructions: "You are a helpful voice agent.", Voice: "verse",
		})
	}))
	defer front.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(front.URL), nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case q := <-gotQuery:
		assert.Equal(t, "gpt-4o-realtime-preview", q)
	case <-time.After(3 * time.Second):
		t.Fatal("upstream was not dialed")
	}

	select {
	case data := <-first:
		assert.Contains(t, string(data), `"type":"session.update"`)
		assert.Contains(t, string(data), "You are a helpful voice agent.")
		assert.Contains(t, string(data), `"voice":"verse"`)
	case <-time.After(3 * time.Second):
		t.Fatal("session.update was not sent upstream")
	}

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"input_audio_buffer.append"}`)))
	require.NoError(t, client.SetReadDeadline(time.Now().Add(3*time.Second)))
	mt, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, `{"type":"input_audio_buffer.append"}`, string(msg))

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	mt, msg, err = client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, []byte{1, 2, 3}, msg)

	require.NoError(t, client.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second)))

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not finish after client close")
	}
}

func TestRelay_UpstreamUnavailable(t *testing.T) {
	relay := NewRelay("ws://127.0.0.1:1/v1/realtime", "sk-test")
	served := make(chan error, 1)
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served <- relay.Serve(w, r, Session{Model: "m"})
	}))
	defer front.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(front.URL), nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseTryAgainLater, closeErr.Code)

	select {
	case err := <-served:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not return")
	}
}
