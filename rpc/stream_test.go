package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/triviachain/events"
)

func TestStreamFiltersByType(t *testing.T) {
	emitter := events.NewEmitter(nil)
	stream := NewStream(emitter, nil)
	srv := httptest.NewServer(stream)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?types=game_created"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return stream.Clients() == 1 }, time.Second, 10*time.Millisecond)

	emitter.Emit(events.New(events.EventPlayerJoined, map[string]any{"game_id": 1}))
	emitter.Emit(events.New(events.EventGameCreated, map[string]any{"game_id": 2}))

	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev events.Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, events.EventGameCreated, ev.Type)
	assert.EqualValues(t, 2, ev.Data["game_id"])
}

func TestParseTypes(t *testing.T) {
	assert.Nil(t, parseTypes(""))
	assert.Equal(t, map[events.EventType]bool{
		events.EventGameCreated: true,
		events.EventGameEnded:   true,
	}, parseTypes("game_created, game_ended,"))
}

func TestStreamRequiresAuthWhenConfigured(t *testing.T) {
	stream := NewStream(events.NewEmitter(nil), nil)
	s := NewServer(":0", nil, stream, nil, "secret", nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)
}
