package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/footfall/pkg/dto"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	go hub.Run()

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) dto.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg dto.WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubFiltersBySession(t *testing.T) {
	hub, url := startHub(t)
	watched, other := uuid.New(), uuid.New()

	all := dial(t, url)
	one := dial(t, url+"?session_id="+watched.String())
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastCrossing(dto.CrossingEventResponse{SessionID: other, TrackID: 3, Kind: "exit"})
	hub.BroadcastCrossing(dto.CrossingEventResponse{SessionID: watched, TrackID: 7, Kind: "entry"})

	first := readMessage(t, all)
	assert.Equal(t, dto.WSTypeCrossing, first.Type)
	assert.Equal(t, other, first.SessionID)
	assert.Equal(t, watched, readMessage(t, all).SessionID)

	got := readMessage(t, one)
	assert.Equal(t, watched, got.SessionID)
	data, ok := got.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), data["track_id"])
}

func TestHubRelaysTracks(t *testing.T) {
	hub, url := startHub(t)
	id := uuid.New()

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastTracks(id, json.RawMessage(`{"frame_index":4,"tracks":[]}`))

	msg := readMessage(t, conn)
	assert.Equal(t, dto.WSTypeTracks, msg.Type)
	assert.Equal(t, map[string]interface{}{"frame_index": float64(4), "tracks": []interface{}{}}, msg.Data)
}

func TestHubRejectsBadFilter(t *testing.T) {
	_, url := startHub(t)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?session_id=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
