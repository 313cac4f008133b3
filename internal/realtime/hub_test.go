package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(zap.NewNop())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

func TestHub_JoinedClientReceivesProgressEvents(t *testing.T) {
	hub, conn := dialTestHub(t)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "join-generation", GenerationID: "gen-1"}))

	// the join is processed asynchronously by the hub loop; publish until the
	// subscription lands or the deadline passes
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			hub.PublishProgress("gen-1", 40, "phase1")
			time.Sleep(10 * time.Millisecond)
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, EventProgress, msg.Type)

	payload, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "gen-1", payload["generationId"])
	require.Equal(t, float64(40), payload["progress"])
	<-done
}

func TestHub_EventsForOtherGenerationsAreNotDelivered(t *testing.T) {
	hub, conn := dialTestHub(t)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "join-generation", GenerationID: "gen-1"}))

	// wait for the subscription to land, using a marker event for the room we
	// actually joined
	stop := make(chan struct{})
	markers := make(chan struct{})
	go func() {
		defer close(markers)
		for {
			select {
			case <-stop:
				return
			default:
				hub.PublishProgress("gen-1", 1, "phase0")
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	close(stop)
	<-markers

	hub.PublishProgress("gen-other", 99, "phase4")
	hub.PublishSceneComplete("gen-1", "s1", "https://example.test/s1.mp4")

	// drain until the scene-complete for our room arrives; nothing for
	// gen-other may precede it
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		payload, ok := msg.Data.(map[string]interface{})
		require.True(t, ok)
		require.Equal(t, "gen-1", payload["generationId"])
		if msg.Type == EventSceneComplete {
			require.Equal(t, "s1", payload["sceneId"])
			return
		}
	}
}
